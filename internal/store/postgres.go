package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bardify/api/internal/model"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresTaskStore implements TaskStore on the tasks / task_results table
// pair.
type PostgresTaskStore struct {
	db *sql.DB
}

// Ensure PostgresTaskStore implements TaskStore
var _ TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore opens a connection pool and applies pending
// migrations.
func NewPostgresTaskStore(dsn string) (*PostgresTaskStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresTaskStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresTaskStore) Close() error {
	return s.db.Close()
}

// CreateTask records a new queued task.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, taskID string, metadata map[string]interface{}) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, status, metadata, created_at)
		VALUES ($1, $2, $3, $4)
	`, taskID, model.TaskStatusQueued, metaJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// SetStatusProcessing performs the conditional queued → processing
// transition. The WHERE clause on the current status is the only optimistic
// concurrency guard between competing workers.
func (s *PostgresTaskStore) SetStatusProcessing(ctx context.Context, taskID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, started_at = $2
		WHERE task_id = $3 AND status = $4
	`, model.TaskStatusProcessing, time.Now().UTC(), taskID, model.TaskStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to update task status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// SetStatusFailed marks a task failed outside the normal result path.
func (s *PostgresTaskStore) SetStatusFailed(ctx context.Context, taskID, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, completed_at = $2, error_message = $3
		WHERE task_id = $4
	`, model.TaskStatusFailed, time.Now().UTC(), errMsg, taskID)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return nil
}

// UpsertResult writes the result record and the terminal status in one
// transaction, so a queried status never disagrees with the stored result.
func (s *PostgresTaskStore) UpsertResult(ctx context.Context, rec *model.ResultRecord) error {
	outcomesJSON, err := json.Marshal(rec.StepOutcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal step outcomes: %w", err)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	var errMsg sql.NullString
	if rec.ErrorDetails != "" {
		errMsg = sql.NullString{String: rec.ErrorDetails, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, completed_at = $2, error_message = $3
		WHERE task_id = $4
	`, rec.OverallStatus, completedAt, errMsg, rec.TaskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_results (task_id, final_status, processing_time_seconds, step_outcomes, metadata, error_details, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task_id) DO UPDATE
		SET final_status = EXCLUDED.final_status,
		    processing_time_seconds = EXCLUDED.processing_time_seconds,
		    step_outcomes = EXCLUDED.step_outcomes,
		    metadata = EXCLUDED.metadata,
		    error_details = EXCLUDED.error_details,
		    completed_at = EXCLUDED.completed_at
	`, rec.TaskID, rec.OverallStatus, rec.ProcessingTimeSeconds, outcomesJSON, metaJSON, errMsg, completedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// GetStatus returns the lightweight status record for a task.
func (s *PostgresTaskStore) GetStatus(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, status, created_at, started_at, completed_at, error_message
		FROM tasks
		WHERE task_id = $1
	`, taskID)

	var (
		st          model.TaskStatus
		startedAt   sql.NullTime
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	err := row.Scan(&st.TaskID, &st.Status, &st.CreatedAt, &startedAt, &completedAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	if startedAt.Valid {
		st.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		st.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		st.ErrorMessage = &errMsg.String
	}
	return &st, nil
}

// GetResult returns the full result record for a task.
func (s *PostgresTaskStore) GetResult(ctx context.Context, taskID string) (*model.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, final_status, processing_time_seconds, step_outcomes, metadata, error_details, completed_at
		FROM task_results
		WHERE task_id = $1
	`, taskID)

	var (
		rec          model.ResultRecord
		outcomesJSON []byte
		metaJSON     []byte
		errMsg       sql.NullString
	)
	err := row.Scan(&rec.TaskID, &rec.OverallStatus, &rec.ProcessingTimeSeconds, &outcomesJSON, &metaJSON, &errMsg, &rec.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task result: %w", err)
	}

	if err := json.Unmarshal(outcomesJSON, &rec.StepOutcomes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step outcomes: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if errMsg.Valid {
		rec.ErrorDetails = errMsg.String
	}
	return &rec, nil
}

package store

import (
	"context"
	"errors"

	"github.com/bardify/api/internal/model"
)

// ErrTaskNotFound is returned when no task exists for the given ID.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore is the durable status store keyed by task ID. It backs both the
// lightweight status queries and the full result records.
type TaskStore interface {
	// CreateTask records a new task with status queued.
	CreateTask(ctx context.Context, taskID string, metadata map[string]interface{}) error

	// SetStatusProcessing transitions queued → processing. It returns false
	// without error when the task is not currently queued, which is how a
	// worker detects a duplicate pickup.
	SetStatusProcessing(ctx context.Context, taskID string) (bool, error)

	// SetStatusFailed marks a task failed with an error message, outside the
	// normal result path (e.g. the descriptor was wholly unusable).
	SetStatusFailed(ctx context.Context, taskID, errMsg string) error

	// UpsertResult persists the terminal result record and the matching
	// status transition. Calling it twice for the same task ID leaves the
	// store in the same observable state as calling it once (last write
	// wins); queue redelivery depends on this.
	UpsertResult(ctx context.Context, rec *model.ResultRecord) error

	GetStatus(ctx context.Context, taskID string) (*model.TaskStatus, error)
	GetResult(ctx context.Context, taskID string) (*model.ResultRecord, error)
}

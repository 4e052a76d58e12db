package store

import (
	"context"
	"sync"
	"time"

	"github.com/bardify/api/internal/model"
)

// MemoryTaskStore is an in-memory TaskStore used by tests and by local runs
// where Postgres is not configured. Semantics mirror PostgresTaskStore,
// including the conditional processing transition and last-write-wins
// result upsert.
type MemoryTaskStore struct {
	mu       sync.RWMutex
	statuses map[string]*model.TaskStatus
	results  map[string]*model.ResultRecord
}

var _ TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty in-memory task store
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		statuses: make(map[string]*model.TaskStatus),
		results:  make(map[string]*model.ResultRecord),
	}
}

func (s *MemoryTaskStore) CreateTask(ctx context.Context, taskID string, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[taskID] = &model.TaskStatus{
		TaskID:    taskID,
		Status:    model.TaskStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryTaskStore) SetStatusProcessing(ctx context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[taskID]
	if !ok || st.Status != model.TaskStatusQueued {
		return false, nil
	}
	now := time.Now().UTC()
	st.Status = model.TaskStatusProcessing
	st.StartedAt = &now
	return true, nil
}

func (s *MemoryTaskStore) SetStatusFailed(ctx context.Context, taskID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	now := time.Now().UTC()
	st.Status = model.TaskStatusFailed
	st.CompletedAt = &now
	st.ErrorMessage = &errMsg
	return nil
}

func (s *MemoryTaskStore) UpsertResult(ctx context.Context, rec *model.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	cp := *rec
	cp.CompletedAt = completedAt
	s.results[rec.TaskID] = &cp

	st, ok := s.statuses[rec.TaskID]
	if !ok {
		st = &model.TaskStatus{TaskID: rec.TaskID, CreatedAt: completedAt}
		s.statuses[rec.TaskID] = st
	}
	st.Status = rec.OverallStatus
	st.CompletedAt = &completedAt
	if rec.ErrorDetails != "" {
		msg := rec.ErrorDetails
		st.ErrorMessage = &msg
	}
	return nil
}

func (s *MemoryTaskStore) GetStatus(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statuses[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryTaskStore) GetResult(ctx context.Context, taskID string) (*model.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.results[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *rec
	return &cp, nil
}

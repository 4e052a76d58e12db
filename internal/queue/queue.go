package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bardify/api/internal/model"
	"github.com/hibiken/asynq"
)

// TaskTypePipeline is the asynq task type for sheet-music pipeline jobs.
const TaskTypePipeline = "pipeline:process"

// QueuePipeline is the asynq queue name pipeline jobs are routed to.
const QueuePipeline = "pipeline"

// TaskQueue is the enqueue side of the job queue. Delivery is at-least-once:
// the worker acknowledges by returning nil from its handler, and any error
// return causes redelivery after the task timeout.
type TaskQueue interface {
	Enqueue(ctx context.Context, desc *model.TaskDescriptor) error
}

// AsynqQueue implements TaskQueue on a Redis-backed asynq client.
type AsynqQueue struct {
	client   *asynq.Client
	timeout  time.Duration
	maxRetry int
}

var _ TaskQueue = (*AsynqQueue)(nil)

// NewAsynqQueue wraps an asynq client. The timeout is the visibility
// deadline for a single pipeline run; it must exceed the worst-case run
// duration or the queue will hand the message to a second worker while the
// first is still processing.
func NewAsynqQueue(client *asynq.Client, timeout time.Duration, maxRetry int) *AsynqQueue {
	return &AsynqQueue{
		client:   client,
		timeout:  timeout,
		maxRetry: maxRetry,
	}
}

// Enqueue publishes a task descriptor for the worker.
func (q *AsynqQueue) Enqueue(ctx context.Context, desc *model.TaskDescriptor) error {
	payload, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("failed to marshal task descriptor: %w", err)
	}

	task := asynq.NewTask(TaskTypePipeline, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(QueuePipeline),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(q.timeout),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// MemoryQueue collects enqueued descriptors in memory. Used by tests and by
// handler-level runs that have no Redis available.
type MemoryQueue struct {
	mu    sync.Mutex
	tasks []*model.TaskDescriptor
}

var _ TaskQueue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, desc *model.TaskDescriptor) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, desc)
	return nil
}

// Pending returns the descriptors enqueued so far.
func (q *MemoryQueue) Pending() []*model.TaskDescriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*model.TaskDescriptor, len(q.tasks))
	copy(out, q.tasks)
	return out
}

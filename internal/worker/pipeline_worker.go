package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/pipeline"
	"github.com/bardify/api/internal/store"
	"github.com/bardify/api/internal/websocket"
	"github.com/hibiken/asynq"
)

// PipelineWorker consumes pipeline tasks from the queue. Returning nil from
// ProcessTask acknowledges the message; returning an error hands it back for
// redelivery, and after the retry budget asynq archives it, which serves as
// the dead-letter path for malformed payloads.
type PipelineWorker struct {
	runner *pipeline.Runner
	tasks  store.TaskStore
	hub    *websocket.Hub
}

func NewPipelineWorker(runner *pipeline.Runner, tasks store.TaskStore, hub *websocket.Hub) *PipelineWorker {
	return &PipelineWorker{runner: runner, tasks: tasks, hub: hub}
}

// ProcessTask handles one queued pipeline task.
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var desc model.TaskDescriptor
	if err := json.Unmarshal(t.Payload(), &desc); err != nil {
		log.Printf("Malformed task payload, leaving for redelivery: %v", err)
		return fmt.Errorf("failed to unmarshal task descriptor: %w", err)
	}
	if desc.TaskID == "" {
		log.Printf("Task payload missing task ID, leaving for redelivery")
		return fmt.Errorf("task descriptor has no task ID")
	}

	started, err := w.tasks.SetStatusProcessing(ctx, desc.TaskID)
	if err != nil {
		return fmt.Errorf("failed to mark task %s processing: %w", desc.TaskID, err)
	}
	if !started {
		status, err := w.tasks.GetStatus(ctx, desc.TaskID)
		if err != nil {
			return fmt.Errorf("failed to check status of task %s: %w", desc.TaskID, err)
		}
		if status.Status.Terminal() {
			// Duplicate delivery of an already finished task. The result
			// is durable, so acknowledge without reprocessing.
			log.Printf("Task %s already %s, skipping duplicate delivery", desc.TaskID, status.Status)
			return nil
		}
		// Stuck in processing: a previous worker died mid-run. Run it
		// again; the result upsert is idempotent.
		log.Printf("Task %s found mid-processing, re-running after presumed worker crash", desc.TaskID)
	}

	log.Printf("Starting pipeline task %s (%d steps)", desc.TaskID, len(desc.Steps))
	result := w.runner.Run(ctx, &desc)

	if err := w.tasks.UpsertResult(ctx, result); err != nil {
		return fmt.Errorf("failed to persist result for task %s: %w", desc.TaskID, err)
	}

	log.Printf("Pipeline task %s finished: %s in %.2fs", desc.TaskID, result.OverallStatus, result.ProcessingTimeSeconds)

	if w.hub != nil {
		if result.OverallStatus == model.TaskStatusFailed {
			w.hub.BroadcastError(desc.TaskID, "PIPELINE_FAILED", result.ErrorDetails)
		} else {
			w.hub.BroadcastComplete(desc.TaskID, result)
		}
	}

	if result.OverallStatus == model.TaskStatusFailed {
		// Surface the failure to the queue for operator visibility. A
		// redelivered failed task is acknowledged above once its terminal
		// status is seen.
		return fmt.Errorf("task %s failed: %s", desc.TaskID, result.ErrorDetails)
	}
	return nil
}

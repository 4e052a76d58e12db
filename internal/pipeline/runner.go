package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bardify/api/internal/client"
	"github.com/bardify/api/internal/model"
)

// Notifier receives live progress events during a run. A nil notifier is
// valid and drops everything.
type Notifier interface {
	NotifyStep(taskID, stepKind, status string)
}

// Runner executes the declared steps of a task descriptor in order and
// produces exactly one result record per run.
type Runner struct {
	storage  client.StorageClient
	registry *Registry
	notifier Notifier
}

func NewRunner(storage client.StorageClient, registry *Registry, notifier Notifier) *Runner {
	return &Runner{storage: storage, registry: registry, notifier: notifier}
}

// Run processes one task. It never returns an error: every failure mode,
// including a panicking executor, is folded into the result record so the
// caller always has something to persist.
func (r *Runner) Run(ctx context.Context, task *model.TaskDescriptor) *model.ResultRecord {
	start := time.Now()
	pc := newContext(task)

	result := &model.ResultRecord{
		TaskID:   task.TaskID,
		Metadata: task.Metadata,
	}

	tempDir, err := os.MkdirTemp("", "bardify-task-")
	if err != nil {
		return r.finish(result, pc, start, model.TaskStatusFailed,
			fmt.Sprintf("failed to create work directory: %v", err))
	}
	defer os.RemoveAll(tempDir)

	if err := r.fetchSource(ctx, pc, tempDir); err != nil {
		log.Printf("Task %s: source fetch failed: %v", task.TaskID, err)
		return r.finish(result, pc, start, model.TaskStatusFailed,
			fmt.Sprintf("failed to fetch source file: %v", err))
	}

	overall := model.TaskStatusCompleted
	var errorDetails string

	for _, step := range task.Steps {
		exec, ok := r.registry.Lookup(step.Kind)
		if !ok {
			log.Printf("Task %s: unknown step kind %q, skipping", task.TaskID, step.Kind)
			pc.record(step.Kind, model.StepStatusSkippedUnknownType, nil)
			r.notify(task.TaskID, step.Kind, model.StepStatusSkippedUnknownType)
			continue
		}

		detail, err := r.executeStep(ctx, exec, pc, step)
		if err == nil {
			pc.record(step.Kind, model.StepStatusSuccess, detail)
			r.notify(task.TaskID, step.Kind, model.StepStatusSuccess)
			continue
		}

		var skip *SkipError
		if errors.As(err, &skip) {
			log.Printf("Task %s: step %s skipped: %s", task.TaskID, step.Kind, skip.Reason)
			pc.record(step.Kind, model.StepStatusSkipped, map[string]interface{}{"reason": skip.Reason})
			r.notify(task.TaskID, step.Kind, model.StepStatusSkipped)
			continue
		}

		if detail == nil {
			detail = map[string]interface{}{}
		}
		detail["error"] = err.Error()

		if exec.Fatal() {
			log.Printf("Task %s: critical step %s failed: %v", task.TaskID, step.Kind, err)
			pc.record(step.Kind, model.StepStatusFailedCritical, detail)
			r.notify(task.TaskID, step.Kind, model.StepStatusFailedCritical)
			return r.finish(result, pc, start, model.TaskStatusFailed,
				fmt.Sprintf("step %s failed: %v", step.Kind, err))
		}

		log.Printf("Task %s: step %s failed, continuing: %v", task.TaskID, step.Kind, err)
		pc.record(step.Kind, model.StepStatusFailed, detail)
		r.notify(task.TaskID, step.Kind, model.StepStatusFailed)
		overall = model.TaskStatusCompletedWithErrors
		if errorDetails != "" {
			errorDetails += "; "
		}
		errorDetails += fmt.Sprintf("%s: %v", step.Kind, err)
	}

	return r.finish(result, pc, start, overall, errorDetails)
}

// executeStep isolates one executor invocation. A panic inside an executor
// becomes an ordinary step error instead of killing the worker.
func (r *Runner) executeStep(ctx context.Context, exec Executor, pc *Context, step model.Step) (detail map[string]interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Task %s: step %s panicked: %v", pc.Task.TaskID, step.Kind, rec)
			err = fmt.Errorf("step panicked: %v", rec)
		}
	}()
	return exec.Execute(ctx, pc, step)
}

// fetchSource materializes the task's source file on local disk before any
// step runs.
func (r *Runner) fetchSource(ctx context.Context, pc *Context, tempDir string) error {
	loc := pc.Task.FileLocation

	if loc.Kind == model.LocationFilesystem {
		if _, err := os.Stat(loc.Key); err != nil {
			return fmt.Errorf("local file unavailable: %w", err)
		}
		pc.DownloadedPath = loc.Key
		return nil
	}

	if r.storage == nil {
		return fmt.Errorf("object storage not configured")
	}

	localPath := filepath.Join(tempDir, path.Base(loc.Key))
	if err := r.storage.Download(ctx, loc.Container, loc.Key, localPath); err != nil {
		return err
	}
	pc.DownloadedPath = localPath
	return nil
}

func (r *Runner) finish(result *model.ResultRecord, pc *Context, start time.Time, status model.TaskState, errorDetails string) *model.ResultRecord {
	result.OverallStatus = status
	result.ErrorDetails = errorDetails
	result.StepOutcomes = pc.Outcomes
	result.ProcessingTimeSeconds = time.Since(start).Seconds()
	result.CompletedAt = time.Now().UTC()
	return result
}

func (r *Runner) notify(taskID, stepKind, status string) {
	if r.notifier != nil {
		r.notifier.NotifyStep(taskID, stepKind, status)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/bardify/api/internal/client"
	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/queue"
	"github.com/bardify/api/internal/store"
	"github.com/google/uuid"
)

// ErrUnsupportedFormat rejects uploads whose extension the pipeline cannot
// process.
var ErrUnsupportedFormat = errors.New("Unsupported file format")

// allowedExtensions are the source formats the extraction step understands.
var allowedExtensions = map[string]bool{
	"pdf":      true,
	"png":      true,
	"jpg":      true,
	"jpeg":     true,
	"musicxml": true,
	"mxl":      true,
	"mid":      true,
}

// TaskService handles sheet-music intake: it stores the uploaded file,
// registers the task and hands the descriptor to the queue. Processing
// happens asynchronously in the worker.
type TaskService struct {
	storage client.StorageClient
	tasks   store.TaskStore
	queue   queue.TaskQueue
}

func NewTaskService(storage client.StorageClient, tasks store.TaskStore, q queue.TaskQueue) *TaskService {
	return &TaskService{storage: storage, tasks: tasks, queue: q}
}

// Submit accepts an uploaded file and queues a processing task for it. The
// returned response carries the task ID the client polls or subscribes with.
func (s *TaskService) Submit(ctx context.Context, filename string, file io.Reader, req *model.UploadRequest) (*model.UploadResponse, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedExtensions[ext] {
		return nil, ErrUnsupportedFormat
	}

	taskID := uuid.New().String()
	key := fmt.Sprintf("sheetmusic/%s/%s", taskID, filepath.Base(filename))

	if s.storage == nil {
		return nil, errors.New("object storage not configured")
	}
	if _, err := s.storage.Upload(ctx, key, file, contentTypeFor(ext)); err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	metadata := map[string]interface{}{
		"original_filename": filepath.Base(filename),
		"output_format":     outputFormat(req),
	}

	if err := s.tasks.CreateTask(ctx, taskID, metadata); err != nil {
		s.discardUpload(ctx, key)
		return nil, fmt.Errorf("failed to register task: %w", err)
	}

	desc := &model.TaskDescriptor{
		TaskID: taskID,
		FileLocation: model.FileLocation{
			Kind: model.LocationBlob,
			Key:  key,
		},
		Steps:    buildSteps(req),
		Metadata: metadata,
	}

	if err := s.queue.Enqueue(ctx, desc); err != nil {
		if ferr := s.tasks.SetStatusFailed(ctx, taskID, "failed to enqueue task"); ferr != nil {
			log.Printf("Failed to mark task %s failed after enqueue error: %v", taskID, ferr)
		}
		s.discardUpload(ctx, key)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.UploadResponse{
		TaskID:      taskID,
		UploadedKey: key,
		Status:      "processing_queued",
		Message:     "File uploaded, processing queued",
	}, nil
}

// discardUpload removes a stored upload that no task references anymore.
func (s *TaskService) discardUpload(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		log.Printf("Failed to delete orphaned upload %s: %v", key, err)
	}
}

// buildSteps declares the pipeline for one upload. Order matters: later
// steps consume what earlier ones produce.
func buildSteps(req *model.UploadRequest) []model.Step {
	steps := []model.Step{
		{Kind: model.StepExtractMusicData},
		{Kind: model.StepExtractTextFromScore},
	}

	if req.TranslateStyle {
		steps = append(steps, model.Step{Kind: model.StepTranslateStyle})
	}

	steps = append(steps, model.Step{
		Kind:       model.StepGenerateOutputFile,
		Parameters: map[string]interface{}{"format": outputFormat(req)},
	})

	if req.AnalyzeScore {
		steps = append(steps,
			model.Step{Kind: model.StepAnalyzeHarmony},
			model.Step{Kind: model.StepAnalyzeForm},
		)
	}

	return steps
}

func outputFormat(req *model.UploadRequest) string {
	if req.OutputFormat == "" {
		return model.OutputFormatMIDI
	}
	return req.OutputFormat
}

func contentTypeFor(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "musicxml":
		return "application/vnd.recordare.musicxml+xml"
	case "mxl":
		return "application/vnd.recordare.musicxml"
	case "mid":
		return "audio/midi"
	default:
		return "application/octet-stream"
	}
}

// Status returns the lightweight task status record.
func (s *TaskService) Status(ctx context.Context, taskID string) (*model.TaskStatus, error) {
	return s.tasks.GetStatus(ctx, taskID)
}

// TaskResult is the API view of a result record, extended with a
// short-lived download link for the rendered artifact.
type TaskResult struct {
	*model.ResultRecord
	DownloadURL string `json:"downloadUrl,omitempty"`
}

const downloadURLExpiry = 15 * time.Minute

// Result returns the terminal result record for a task. When the pipeline
// rendered an output file, the record is annotated with a presigned URL for
// downloading it.
func (s *TaskService) Result(ctx context.Context, taskID string) (*TaskResult, error) {
	rec, err := s.tasks.GetResult(ctx, taskID)
	if err != nil {
		return nil, err
	}

	res := &TaskResult{ResultRecord: rec}
	if key := renderedArtifactKey(rec); key != "" && s.storage != nil {
		url, err := s.storage.GetSignedURL(ctx, key, downloadURLExpiry)
		if err != nil {
			log.Printf("Failed to sign download URL for task %s: %v", taskID, err)
		} else {
			res.DownloadURL = url
		}
	}
	return res, nil
}

// renderedArtifactKey extracts the storage key the render step reported,
// if it completed.
func renderedArtifactKey(rec *model.ResultRecord) string {
	outcome, ok := rec.StepOutcomes[model.StepGenerateOutputFile]
	if !ok || outcome.Status != model.StepStatusSuccess {
		return ""
	}
	loc, ok := outcome.Detail["location"].(map[string]interface{})
	if !ok {
		return ""
	}
	key, _ := loc["key"].(string)
	return key
}

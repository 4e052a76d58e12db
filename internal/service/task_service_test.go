package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/queue"
	"github.com/bardify/api/internal/store"
)

// stubStorage is an in-memory StorageClient for service tests.
type stubStorage struct {
	uploads map[string][]byte
	deleted []string
}

func newStubStorage() *stubStorage {
	return &stubStorage{uploads: make(map[string][]byte)}
}

func (s *stubStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.uploads[key] = data
	return "https://storage.test/" + key, nil
}

func (s *stubStorage) Download(ctx context.Context, container, key, localPath string) error {
	return errors.New("not implemented")
}

func (s *stubStorage) Delete(ctx context.Context, key string) error {
	delete(s.uploads, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *stubStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + key + "?signed", nil
}

func (s *stubStorage) GetPublicURL(key string) string {
	return "https://storage.test/" + key
}

type failingQueue struct{}

func (failingQueue) Enqueue(ctx context.Context, desc *model.TaskDescriptor) error {
	return errors.New("broker unavailable")
}

func newTestService() (*TaskService, *store.MemoryTaskStore, *queue.MemoryQueue, *stubStorage) {
	tasks := store.NewMemoryTaskStore()
	q := queue.NewMemoryQueue()
	storage := newStubStorage()
	return NewTaskService(storage, tasks, q), tasks, q, storage
}

func TestSubmit_QueuesTask(t *testing.T) {
	svc, tasks, q, storage := newTestService()

	resp, err := svc.Submit(context.Background(), "sonnet.pdf", strings.NewReader("%PDF-1.4"), &model.UploadRequest{})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if resp.TaskID == "" {
		t.Error("expected a task ID")
	}
	if resp.Status != "processing_queued" {
		t.Errorf("expected processing_queued, got %s", resp.Status)
	}
	if !strings.HasPrefix(resp.UploadedKey, "sheetmusic/"+resp.TaskID+"/") {
		t.Errorf("unexpected storage key: %s", resp.UploadedKey)
	}
	if _, ok := storage.uploads[resp.UploadedKey]; !ok {
		t.Errorf("file was not stored under %s", resp.UploadedKey)
	}

	st, err := tasks.GetStatus(context.Background(), resp.TaskID)
	if err != nil {
		t.Fatalf("task was not registered: %v", err)
	}
	if st.Status != model.TaskStatusQueued {
		t.Errorf("expected queued, got %s", st.Status)
	}

	pending := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one queued descriptor, got %d", len(pending))
	}
	if pending[0].TaskID != resp.TaskID {
		t.Errorf("descriptor task ID mismatch: %s vs %s", pending[0].TaskID, resp.TaskID)
	}
	if pending[0].FileLocation.Key != resp.UploadedKey {
		t.Errorf("descriptor should point at the uploaded key, got %s", pending[0].FileLocation.Key)
	}
}

func TestSubmit_FailsWithoutStorage(t *testing.T) {
	tasks := store.NewMemoryTaskStore()
	q := queue.NewMemoryQueue()
	svc := NewTaskService(nil, tasks, q)

	_, err := svc.Submit(context.Background(), "sonnet.pdf", strings.NewReader("%PDF-1.4"), &model.UploadRequest{})
	if err == nil {
		t.Fatal("expected an error when storage is not configured")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("storage failure must not masquerade as a format error: %v", err)
	}
	if len(q.Pending()) != 0 {
		t.Error("nothing must be enqueued without storage")
	}
}

func TestSubmit_DeletesUploadOnEnqueueFailure(t *testing.T) {
	tasks := store.NewMemoryTaskStore()
	storage := newStubStorage()
	svc := NewTaskService(storage, tasks, failingQueue{})

	_, err := svc.Submit(context.Background(), "sonnet.pdf", strings.NewReader("%PDF-1.4"), &model.UploadRequest{})
	if err == nil {
		t.Fatal("expected enqueue failure to surface")
	}
	if len(storage.uploads) != 0 {
		t.Errorf("orphaned upload left in storage: %v", storage.uploads)
	}
	if len(storage.deleted) != 1 {
		t.Errorf("expected one delete call, got %v", storage.deleted)
	}
}

func TestSubmit_RejectsUnsupportedFormat(t *testing.T) {
	svc, tasks, q, storage := newTestService()

	_, err := svc.Submit(context.Background(), "notes.txt", strings.NewReader("la la"), &model.UploadRequest{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	if len(q.Pending()) != 0 {
		t.Error("rejected upload must not enqueue anything")
	}
	if len(storage.uploads) != 0 {
		t.Error("rejected upload must not be stored")
	}
	// No task record either
	if _, err := tasks.GetStatus(context.Background(), "any"); !errors.Is(err, store.ErrTaskNotFound) {
		t.Errorf("expected empty store, got %v", err)
	}
}

func TestResult_AddsDownloadURL(t *testing.T) {
	svc, tasks, _, _ := newTestService()

	rec := &model.ResultRecord{
		TaskID:        "t1",
		OverallStatus: model.TaskStatusCompleted,
		StepOutcomes: map[string]model.StepOutcome{
			model.StepGenerateOutputFile: {
				Status: model.StepStatusSuccess,
				Detail: map[string]interface{}{
					"format": model.OutputFormatMIDI,
					"location": map[string]interface{}{
						"kind": model.LocationBlob,
						"key":  "results/t1/output.mid",
					},
				},
			},
		},
	}
	if err := tasks.CreateTask(context.Background(), "t1", nil); err != nil {
		t.Fatal(err)
	}
	if err := tasks.UpsertResult(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Result(context.Background(), "t1")
	if err != nil {
		t.Fatalf("result lookup failed: %v", err)
	}
	want := "https://storage.test/results/t1/output.mid?signed"
	if res.DownloadURL != want {
		t.Errorf("expected signed download URL %q, got %q", want, res.DownloadURL)
	}
}

func TestResult_NoDownloadURLWhenRenderSkipped(t *testing.T) {
	svc, tasks, _, _ := newTestService()

	rec := &model.ResultRecord{
		TaskID:        "t2",
		OverallStatus: model.TaskStatusCompletedWithErrors,
		StepOutcomes: map[string]model.StepOutcome{
			model.StepGenerateOutputFile: {Status: model.StepStatusSkipped},
		},
	}
	if err := tasks.CreateTask(context.Background(), "t2", nil); err != nil {
		t.Fatal(err)
	}
	if err := tasks.UpsertResult(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Result(context.Background(), "t2")
	if err != nil {
		t.Fatalf("result lookup failed: %v", err)
	}
	if res.DownloadURL != "" {
		t.Errorf("expected no download URL, got %q", res.DownloadURL)
	}
}

func TestBuildSteps_Default(t *testing.T) {
	steps := buildSteps(&model.UploadRequest{})

	kinds := make([]string, len(steps))
	for i, s := range steps {
		kinds[i] = s.Kind
	}
	want := []string{model.StepExtractMusicData, model.StepExtractTextFromScore, model.StepGenerateOutputFile}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
	if steps[2].Param("format", "") != model.OutputFormatMIDI {
		t.Errorf("expected midi default format, got %v", steps[2].Parameters)
	}
}

func TestBuildSteps_AllOptions(t *testing.T) {
	steps := buildSteps(&model.UploadRequest{
		OutputFormat:   model.OutputFormatMP3,
		TranslateStyle: true,
		AnalyzeScore:   true,
	})

	kinds := make([]string, len(steps))
	for i, s := range steps {
		kinds[i] = s.Kind
	}
	want := []string{
		model.StepExtractMusicData,
		model.StepExtractTextFromScore,
		model.StepTranslateStyle,
		model.StepGenerateOutputFile,
		model.StepAnalyzeHarmony,
		model.StepAnalyzeForm,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}

	// Translation must run before rendering so style output can be attached.
	var translateIdx, renderIdx int
	for i, k := range kinds {
		if k == model.StepTranslateStyle {
			translateIdx = i
		}
		if k == model.StepGenerateOutputFile {
			renderIdx = i
		}
	}
	if translateIdx > renderIdx {
		t.Error("translate_style must precede generate_output_file")
	}
}

func TestSubmit_ExtensionCaseInsensitive(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.Submit(context.Background(), "SCORE.MusicXML", strings.NewReader("<score/>"), &model.UploadRequest{}); err != nil {
		t.Fatalf("uppercase extension should be accepted: %v", err)
	}
}

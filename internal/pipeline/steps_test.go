package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

const stepsTestXML = `<?xml version="1.0"?>
<score-partwise>
  <part-list><score-part id="P1"><part-name>Voice</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes><divisions>4</divisions></attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration><lyric><text>la</text></lyric></note>
    </measure>
  </part>
</score-partwise>`

func writeTempScore(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestExtract_MusicXML(t *testing.T) {
	exec := NewExtractExecutor(music.StubRecognizer{})
	pc := newContext(&model.TaskDescriptor{TaskID: "t1"})
	pc.DownloadedPath = writeTempScore(t, "score.musicxml", stepsTestXML)

	detail, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepExtractMusicData})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if pc.Score == nil {
		t.Fatal("score not set in context")
	}
	if detail["notes"] != 1 {
		t.Errorf("expected 1 note in detail, got %v", detail["notes"])
	}
}

func TestExtract_ImageUsesRecognizer(t *testing.T) {
	exec := NewExtractExecutor(music.StubRecognizer{})
	pc := newContext(&model.TaskDescriptor{TaskID: "t1"})
	pc.DownloadedPath = writeTempScore(t, "page.png", "not really a png")

	_, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepExtractMusicData})
	if err != nil {
		t.Fatalf("expected recognizer path to succeed, got %v", err)
	}
	if pc.Score == nil || pc.Score.NoteCount() == 0 {
		t.Error("expected recognized score in context")
	}
}

func TestExtract_UnsupportedExtensionFails(t *testing.T) {
	exec := NewExtractExecutor(music.StubRecognizer{})
	pc := newContext(&model.TaskDescriptor{TaskID: "t1"})
	pc.DownloadedPath = writeTempScore(t, "notes.docx", "word salad")

	if _, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepExtractMusicData}); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestText_CollectsDocumentOrder(t *testing.T) {
	pc := newContext(&model.TaskDescriptor{TaskID: "t1"})
	pc.Score = &music.Score{
		Texts: []music.TextElement{
			{Kind: music.TextKindDirection, Text: "Andante"},
			{Kind: music.TextKindLyric, Text: "Shall I"},
			{Kind: music.TextKindLyric, Text: "compare thee"},
		},
	}

	exec := NewTextExecutor()
	detail, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepExtractTextFromScore})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if !pc.TextExtracted {
		t.Error("TextExtracted flag not set")
	}
	want := "Andante\nShall I\ncompare thee"
	if pc.ExtractedText != want {
		t.Errorf("expected %q, got %q", want, pc.ExtractedText)
	}
	if detail["lyrics"] != 2 || detail["directions"] != 1 {
		t.Errorf("unexpected counts: %v", detail)
	}
}

func TestText_EmptyScoreIsSuccess(t *testing.T) {
	pc := newContext(&model.TaskDescriptor{TaskID: "t1"})
	pc.Score = &music.Score{}

	exec := NewTextExecutor()
	if _, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepExtractTextFromScore}); err != nil {
		t.Fatalf("empty score must be a valid outcome, got %v", err)
	}
	if !pc.TextExtracted {
		t.Error("extraction flag must be set even for empty text")
	}
	if pc.ExtractedText != "" {
		t.Errorf("expected empty text, got %q", pc.ExtractedText)
	}
}

func TestText_SkipsWithoutScore(t *testing.T) {
	exec := NewTextExecutor()
	_, err := exec.Execute(context.Background(), newContext(&model.TaskDescriptor{TaskID: "t1"}), model.Step{Kind: model.StepExtractTextFromScore})

	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
}

// fakeStorage records uploads in memory.
type fakeStorage struct {
	uploads map[string][]byte
	fail    bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.fail {
		return "", errors.New("storage unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.uploads[key] = data
	return "https://cdn.test/" + key, nil
}

func (f *fakeStorage) Download(ctx context.Context, container, key, localPath string) error {
	data, ok := f.uploads[key]
	if !ok {
		return errors.New("no such object")
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://cdn.test/" + key + "?signed", nil
}

func (f *fakeStorage) GetPublicURL(key string) string { return "https://cdn.test/" + key }

func renderScore() *music.Score {
	return &music.Score{
		Divisions: 4,
		Parts: []music.Part{{
			ID:       "P1",
			Measures: []music.Measure{{Number: 1, Notes: []music.Note{{Pitch: 60, Duration: 4}}}},
		}},
	}
}

func TestRender_UploadsMIDI(t *testing.T) {
	storage := newFakeStorage()
	exec := NewRenderExecutor(storage, music.NewStubSynthesizer())

	pc := newContext(&model.TaskDescriptor{TaskID: "task-9"})
	pc.Score = renderScore()

	detail, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepGenerateOutputFile})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	key := "results/task-9/output.mid"
	data, ok := storage.uploads[key]
	if !ok {
		t.Fatalf("expected upload at %s, got %v", key, storage.uploads)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Error("uploaded artifact is not a MIDI file")
	}
	loc := detail["location"].(map[string]interface{})
	if loc["key"] != key {
		t.Errorf("expected locator key %s, got %v", key, loc["key"])
	}
}

func TestRender_FormatParameter(t *testing.T) {
	storage := newFakeStorage()
	exec := NewRenderExecutor(storage, music.NewStubSynthesizer())

	pc := newContext(&model.TaskDescriptor{TaskID: "task-9"})
	pc.Score = renderScore()

	step := model.Step{
		Kind:       model.StepGenerateOutputFile,
		Parameters: map[string]interface{}{"format": model.OutputFormatMusicXML},
	}
	if _, err := exec.Execute(context.Background(), pc, step); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	data, ok := storage.uploads["results/task-9/output.musicxml"]
	if !ok {
		t.Fatalf("expected musicxml upload, got %v", storage.uploads)
	}
	if !strings.Contains(string(data), "score-partwise") {
		t.Error("uploaded artifact is not a MusicXML document")
	}
}

func TestRender_UnknownFormatFails(t *testing.T) {
	exec := NewRenderExecutor(newFakeStorage(), music.NewStubSynthesizer())
	pc := newContext(&model.TaskDescriptor{TaskID: "task-9"})
	pc.Score = renderScore()

	step := model.Step{
		Kind:       model.StepGenerateOutputFile,
		Parameters: map[string]interface{}{"format": "flac"},
	}
	if _, err := exec.Execute(context.Background(), pc, step); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRender_StorageFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.fail = true
	exec := NewRenderExecutor(storage, music.NewStubSynthesizer())

	pc := newContext(&model.TaskDescriptor{TaskID: "task-9"})
	pc.Score = renderScore()

	if _, err := exec.Execute(context.Background(), pc, model.Step{Kind: model.StepGenerateOutputFile}); err == nil {
		t.Fatal("expected error when upload fails")
	}
}

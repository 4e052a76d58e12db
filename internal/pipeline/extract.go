package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

// ExtractExecutor parses the downloaded source file into a structured score.
// Every later step consumes that score, so a failure here is critical and
// aborts the run.
type ExtractExecutor struct {
	recognizer music.Recognizer
}

func NewExtractExecutor(recognizer music.Recognizer) *ExtractExecutor {
	return &ExtractExecutor{recognizer: recognizer}
}

func (e *ExtractExecutor) Kind() string { return model.StepExtractMusicData }
func (e *ExtractExecutor) Fatal() bool  { return true }

func (e *ExtractExecutor) Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(pc.DownloadedPath), "."))

	var score *music.Score
	var err error

	switch ext {
	case "pdf", "png", "jpg", "jpeg":
		score, err = e.recognizer.Recognize(ctx, pc.DownloadedPath)
	case "musicxml", "xml", "mxl":
		score, err = music.ParseMusicXMLFile(pc.DownloadedPath)
	case "mid", "midi":
		score, err = music.ParseMIDIFile(pc.DownloadedPath)
	default:
		return nil, fmt.Errorf("unsupported source format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract music data: %w", err)
	}

	pc.Score = score
	return map[string]interface{}{
		"title":    score.Title,
		"parts":    len(score.Parts),
		"measures": score.MeasureCount(),
		"notes":    score.NoteCount(),
	}, nil
}

package pipeline

import (
	"context"
	"strings"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

// TextExecutor collects the textual content of the score in document order:
// lyrics, directions and markers as they appear. An empty score is a valid
// outcome, not a failure.
type TextExecutor struct{}

func NewTextExecutor() *TextExecutor { return &TextExecutor{} }

func (e *TextExecutor) Kind() string { return model.StepExtractTextFromScore }
func (e *TextExecutor) Fatal() bool  { return false }

func (e *TextExecutor) Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error) {
	if pc.Score == nil {
		return nil, &SkipError{Reason: "no extracted score available"}
	}

	var parts []string
	counts := map[string]int{}
	for _, t := range pc.Score.Texts {
		if t.Text == "" {
			continue
		}
		parts = append(parts, t.Text)
		counts[t.Kind]++
	}

	pc.ExtractedText = strings.Join(parts, "\n")
	pc.TextExtracted = true

	return map[string]interface{}{
		"characters": len(pc.ExtractedText),
		"lyrics":     counts[music.TextKindLyric],
		"directions": counts[music.TextKindDirection],
		"markers":    counts[music.TextKindMarker],
	}, nil
}

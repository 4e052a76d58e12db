// Package pipeline runs the ordered steps of a task descriptor against a
// downloaded source file, accumulating per-step outcomes into a single
// terminal result record.
package pipeline

import (
	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

// Context carries intermediate products between steps of one run. It is
// owned by a single goroutine; steps read what their prerequisites produced
// and write their own outputs.
type Context struct {
	Task *model.TaskDescriptor

	// DownloadedPath is the local copy of the source file. Set by the
	// runner before any step executes.
	DownloadedPath string

	// Score is set by extract_music_data; nil until then.
	Score *music.Score

	// ExtractedText holds the document-order text pulled from the score.
	// TextExtracted distinguishes "extraction ran and found nothing" from
	// "extraction never ran".
	ExtractedText string
	TextExtracted bool

	// TranslatedText is the style-translated form of ExtractedText.
	TranslatedText string

	// Outcomes accumulates one entry per declared step, keyed by kind.
	Outcomes map[string]model.StepOutcome
}

func newContext(task *model.TaskDescriptor) *Context {
	return &Context{
		Task:     task,
		Outcomes: make(map[string]model.StepOutcome),
	}
}

func (c *Context) record(kind, status string, detail map[string]interface{}) {
	c.Outcomes[kind] = model.StepOutcome{Status: status, Detail: detail}
}

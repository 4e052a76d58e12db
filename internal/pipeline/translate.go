package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/bardify/api/internal/client"
	"github.com/bardify/api/internal/model"
)

const defaultStyle = "shakespearean"

const translateSystemPrompt = `You rewrite song lyrics and performance text in a requested literary style.
Preserve the meaning, line structure and singability of the original text.
Respond with only the rewritten text, no commentary.`

// TranslateExecutor rewrites the extracted text in a literary style through
// the chat API. Text is chunked so long librettos stay inside the model's
// context, and each chunk call is retried before the step gives up.
type TranslateExecutor struct {
	llm          client.TextTransformer
	retry        RetryPolicy
	chunkSize    int
	chunkOverlap int
}

func NewTranslateExecutor(llm client.TextTransformer, retry RetryPolicy, chunkSize, chunkOverlap int) *TranslateExecutor {
	return &TranslateExecutor{llm: llm, retry: retry, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func (e *TranslateExecutor) Kind() string { return model.StepTranslateStyle }
func (e *TranslateExecutor) Fatal() bool  { return false }

func (e *TranslateExecutor) Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error) {
	if !pc.TextExtracted {
		return nil, &SkipError{Reason: "no extracted text available"}
	}
	if strings.TrimSpace(pc.ExtractedText) == "" {
		return nil, &SkipError{Reason: "score contains no text to translate"}
	}
	if e.llm == nil || !e.llm.IsConfigured() {
		return nil, fmt.Errorf("text transformer not configured")
	}

	style := step.Param("style", defaultStyle)
	language := detectLanguage(pc.ExtractedText)

	sentences := splitSentences(pc.ExtractedText)
	chunks := chunkSentences(sentences, e.chunkSize, e.chunkOverlap)

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		user := translatePrompt(language, style, chunk)

		var out string
		err := e.retry.Do(ctx, func() error {
			var callErr error
			out, callErr = e.llm.TransformText(ctx, translateSystemPrompt, user)
			return callErr
		})
		if err != nil {
			return map[string]interface{}{
				"style":            style,
				"chunks_total":     len(chunks),
				"chunks_completed": i,
			}, fmt.Errorf("chunk %d/%d translation failed: %w", i+1, len(chunks), err)
		}
		translated = append(translated, out)
	}

	pc.TranslatedText = strings.Join(translated, "\n")

	return map[string]interface{}{
		"style":           style,
		"source_language": language,
		"chunks":          len(chunks),
		"characters":      len(pc.TranslatedText),
		"translated_text": pc.TranslatedText,
	}, nil
}

// translatePrompt builds the user message for one chunk. Overlap sentences
// from the previous chunk are given as context only; the model is asked to
// rewrite just the chunk body, so seam sentences appear once in the output.
func translatePrompt(language, style string, chunk textChunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rewrite the following text (language: %s) in a %s style.", language, style)
	if chunk.Leading != "" {
		fmt.Fprintf(&sb, "\nThe passage continues from this earlier text, which you must not repeat:\n%s", chunk.Leading)
	}
	sb.WriteString("\n\nText to rewrite:\n")
	sb.WriteString(chunk.Body)
	return sb.String()
}

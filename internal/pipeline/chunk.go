package pipeline

import (
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var sentenceTokenizer = func() *sentences.DefaultSentenceTokenizer {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		panic(err)
	}
	return t
}()

// splitSentences tokenizes text into trimmed sentences using a Punkt
// tokenizer, which copes with abbreviations and ellipses better than a
// punctuation scan.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceTokenizer.Tokenize(text) {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// textChunk is one translation unit. Leading repeats the final overlap
// sentences of the previous chunk so the transform sees context at the
// seam; it is never part of this chunk's output. Bodies are disjoint, so
// joining them reconstructs every sentence exactly once.
type textChunk struct {
	Leading string
	Body    string
}

// chunkSentences groups sentences into chunks spanning at most size
// sentences, overlap of which are shared with the previous chunk as
// leading context.
func chunkSentences(sentences []string, size, overlap int) []textChunk {
	if size <= 0 {
		size = 1
	}
	if overlap >= size {
		overlap = size - 1
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []textChunk
	step := size - overlap

	for start := 0; start < len(sentences); start += step {
		end := start + size
		if end > len(sentences) {
			end = len(sentences)
		}

		bodyStart := start
		var leading string
		if start > 0 && overlap > 0 {
			leading = strings.Join(sentences[start:start+overlap], " ")
			bodyStart = start + overlap
		}

		chunks = append(chunks, textChunk{
			Leading: leading,
			Body:    strings.Join(sentences[bodyStart:end], " "),
		})
		if end == len(sentences) {
			break
		}
	}
	return chunks
}

package music

import "context"

// Recognizer converts a raster image or PDF of notation into a structured
// score. Real optical music recognition is an external capability; the
// pipeline only depends on this contract.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (*Score, error)
}

// StubRecognizer returns a small fixed score regardless of input. It stands
// in for a real OMR engine in development and tests.
type StubRecognizer struct{}

var _ Recognizer = (*StubRecognizer)(nil)

func (StubRecognizer) Recognize(ctx context.Context, path string) (*Score, error) {
	return &Score{
		Title:     "Recognized Score",
		Divisions: 4,
		Parts: []Part{
			{
				ID:   "P1",
				Name: "Voice",
				Measures: []Measure{
					{Number: 1, Notes: []Note{
						{Pitch: 60, Duration: 4, Lyric: "Shall"},
						{Pitch: 62, Duration: 4, Lyric: "I"},
						{Pitch: 64, Duration: 4, Lyric: "com"},
						{Pitch: 65, Duration: 4, Lyric: "pare"},
					}},
					{Number: 2, Notes: []Note{
						{Pitch: 67, Duration: 8, Lyric: "thee"},
						{Pitch: 64, Duration: 8},
					}},
				},
			},
		},
		Texts: []TextElement{
			{Kind: TextKindLyric, Text: "Shall I compare thee", Part: "P1", Measure: 1},
			{Kind: TextKindDirection, Text: "Andante con moto", Part: "P1", Measure: 1},
		},
	}, nil
}

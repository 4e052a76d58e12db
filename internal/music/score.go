// Package music holds the structured score representation produced by
// extraction and consumed by text extraction, rendering and analysis. The
// heavy lifting (optical recognition, audio synthesis) sits behind interfaces
// with stub implementations.
package music

// Text element kinds found in a score.
const (
	TextKindLyric     = "lyric"
	TextKindDirection = "direction"
	TextKindMarker    = "marker"
)

// Note is a single pitched event. Pitch is the MIDI note number; Duration is
// measured in divisions of a quarter note as declared by the score.
type Note struct {
	Pitch    int
	Duration int
	Lyric    string
}

// Measure groups the notes of one bar within a part.
type Measure struct {
	Number int
	Notes  []Note
}

// Part is one instrument or voice line.
type Part struct {
	ID       string
	Name     string
	Measures []Measure
}

// TextElement is a piece of text embedded in the score: a lyric syllable, a
// performance direction, or a rehearsal marker. Position fields keep document
// order reconstructible.
type TextElement struct {
	Kind    string
	Text    string
	Part    string
	Measure int
}

// Score is the opaque music representation threaded through the pipeline.
type Score struct {
	Title     string
	Divisions int // divisions per quarter note; 0 means unspecified
	Parts     []Part
	Texts     []TextElement
}

// NoteCount returns the total number of notes across all parts.
func (s *Score) NoteCount() int {
	n := 0
	for _, p := range s.Parts {
		for _, m := range p.Measures {
			n += len(m.Notes)
		}
	}
	return n
}

// MeasureCount returns the measure count of the longest part.
func (s *Score) MeasureCount() int {
	max := 0
	for _, p := range s.Parts {
		if len(p.Measures) > max {
			max = len(p.Measures)
		}
	}
	return max
}

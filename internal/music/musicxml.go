package music

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Subset of the MusicXML score-partwise document needed for extraction and
// rendering. Elements outside this subset are ignored on parse and never
// emitted on write.

type xmlScorePartwise struct {
	XMLName  xml.Name      `xml:"score-partwise"`
	Work     xmlWork       `xml:"work"`
	PartList []xmlPartDecl `xml:"part-list>score-part"`
	Parts    []xmlPart     `xml:"part"`
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlPartDecl struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	Number     int            `xml:"number,attr"`
	Attributes *xmlAttributes `xml:"attributes"`
	Notes      []xmlNote      `xml:"note"`
	Directions []xmlDirection `xml:"direction"`
}

type xmlAttributes struct {
	Divisions int `xml:"divisions"`
}

type xmlNote struct {
	Pitch    *xmlPitch  `xml:"pitch"`
	Rest     *struct{}  `xml:"rest"`
	Duration int        `xml:"duration"`
	Lyrics   []xmlLyric `xml:"lyric"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter"`
	Octave int    `xml:"octave"`
}

type xmlLyric struct {
	Text string `xml:"text"`
}

type xmlDirection struct {
	Words     string `xml:"direction-type>words"`
	Rehearsal string `xml:"direction-type>rehearsal"`
}

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

func (p xmlPitch) midi() int {
	return (p.Octave+1)*12 + stepSemitones[strings.ToUpper(p.Step)] + p.Alter
}

// ParseMusicXML reads a score-partwise MusicXML document.
func ParseMusicXML(r io.Reader) (*Score, error) {
	var doc xmlScorePartwise
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse MusicXML: %w", err)
	}

	names := make(map[string]string, len(doc.PartList))
	for _, d := range doc.PartList {
		names[d.ID] = d.Name
	}

	score := &Score{Title: doc.Work.Title}

	for _, xp := range doc.Parts {
		part := Part{ID: xp.ID, Name: names[xp.ID]}
		for _, xm := range xp.Measures {
			if xm.Attributes != nil && xm.Attributes.Divisions > 0 && score.Divisions == 0 {
				score.Divisions = xm.Attributes.Divisions
			}
			measure := Measure{Number: xm.Number}
			for _, xn := range xm.Notes {
				if xn.Pitch == nil {
					continue // rest
				}
				note := Note{Pitch: xn.Pitch.midi(), Duration: xn.Duration}
				if len(xn.Lyrics) > 0 {
					note.Lyric = xn.Lyrics[0].Text
					score.Texts = append(score.Texts, TextElement{
						Kind:    TextKindLyric,
						Text:    xn.Lyrics[0].Text,
						Part:    xp.ID,
						Measure: xm.Number,
					})
				}
				measure.Notes = append(measure.Notes, note)
			}
			for _, xd := range xm.Directions {
				if xd.Words != "" {
					score.Texts = append(score.Texts, TextElement{
						Kind:    TextKindDirection,
						Text:    xd.Words,
						Part:    xp.ID,
						Measure: xm.Number,
					})
				}
				if xd.Rehearsal != "" {
					score.Texts = append(score.Texts, TextElement{
						Kind:    TextKindMarker,
						Text:    xd.Rehearsal,
						Part:    xp.ID,
						Measure: xm.Number,
					})
				}
			}
			part.Measures = append(part.Measures, measure)
		}
		score.Parts = append(score.Parts, part)
	}

	return score, nil
}

// ParseMusicXMLFile reads .musicxml directly or the first .xml/.musicxml
// entry of a compressed .mxl container.
func ParseMusicXMLFile(path string) (*Score, error) {
	if strings.EqualFold(filepath.Ext(path), ".mxl") {
		return parseMXL(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open score file: %w", err)
	}
	defer f.Close()
	return ParseMusicXML(f)
}

func parseMXL(path string) (*Score, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mxl container: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		name := strings.ToLower(zf.Name)
		if strings.HasPrefix(name, "meta-inf/") {
			continue
		}
		if strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".musicxml") {
			rc, err := zf.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open mxl entry %s: %w", zf.Name, err)
			}
			score, err := ParseMusicXML(rc)
			rc.Close()
			return score, err
		}
	}
	return nil, fmt.Errorf("no MusicXML document found in mxl container")
}

func midiToPitch(midi int) xmlPitch {
	octave := midi/12 - 1
	semitone := midi % 12
	steps := []struct {
		step  string
		alter int
	}{
		{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
		{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
	}
	return xmlPitch{Step: steps[semitone].step, Alter: steps[semitone].alter, Octave: octave}
}

// WriteMusicXML renders the score as a score-partwise document.
func WriteMusicXML(w io.Writer, score *Score) error {
	divisions := score.Divisions
	if divisions == 0 {
		divisions = 4
	}

	doc := xmlScorePartwise{
		Work: xmlWork{Title: score.Title},
	}
	for _, p := range score.Parts {
		doc.PartList = append(doc.PartList, xmlPartDecl{ID: p.ID, Name: p.Name})
		xp := xmlPart{ID: p.ID}
		for i, m := range p.Measures {
			xm := xmlMeasure{Number: m.Number}
			if i == 0 {
				xm.Attributes = &xmlAttributes{Divisions: divisions}
			}
			for _, n := range m.Notes {
				if n.Pitch < 0 || n.Pitch > 127 {
					return fmt.Errorf("pitch %d out of MIDI range", n.Pitch)
				}
				pitch := midiToPitch(n.Pitch)
				xn := xmlNote{Pitch: &pitch, Duration: n.Duration}
				if n.Lyric != "" {
					xn.Lyrics = []xmlLyric{{Text: n.Lyric}}
				}
				xm.Notes = append(xm.Notes, xn)
			}
			xp.Measures = append(xp.Measures, xm)
		}
		doc.Parts = append(doc.Parts, xp)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode MusicXML: %w", err)
	}
	return nil
}

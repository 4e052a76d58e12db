package music

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Standard MIDI file support: enough of SMF format 0/1 to round-trip the
// note content of a score. Ticks map 1:1 to score divisions.

const midiDefaultVelocity = 64

// WriteMIDI renders the score as a single-track SMF file.
func WriteMIDI(w io.Writer, score *Score) error {
	division := score.Divisions
	if division == 0 {
		division = 4
	}

	var track bytes.Buffer

	// Tempo meta event: 500000 µs per quarter (120 BPM).
	track.Write([]byte{0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20})

	for _, part := range score.Parts {
		for _, measure := range part.Measures {
			for _, note := range measure.Notes {
				if note.Pitch < 0 || note.Pitch > 127 {
					return fmt.Errorf("pitch %d out of MIDI range", note.Pitch)
				}
				writeVarint(&track, 0)
				track.Write([]byte{0x90, byte(note.Pitch), midiDefaultVelocity})
				writeVarint(&track, uint32(note.Duration))
				track.Write([]byte{0x80, byte(note.Pitch), 0x00})
			}
		}
	}

	// End of track.
	track.Write([]byte{0x00, 0xFF, 0x2F, 0x00})

	header := make([]byte, 0, 14)
	header = append(header, 'M', 'T', 'h', 'd')
	header = binary.BigEndian.AppendUint32(header, 6)
	header = binary.BigEndian.AppendUint16(header, 0) // format 0
	header = binary.BigEndian.AppendUint16(header, 1) // one track
	header = binary.BigEndian.AppendUint16(header, uint16(division))

	if _, err := w.Write(header); err != nil {
		return err
	}
	trailer := make([]byte, 0, 8)
	trailer = append(trailer, 'M', 'T', 'r', 'k')
	trailer = binary.BigEndian.AppendUint32(trailer, uint32(track.Len()))
	if _, err := w.Write(trailer); err != nil {
		return err
	}
	_, err := w.Write(track.Bytes())
	return err
}

func writeVarint(buf *bytes.Buffer, v uint32) {
	var stack [4]byte
	n := 0
	for {
		stack[n] = byte(v & 0x7F)
		v >>= 7
		n++
		if v == 0 {
			break
		}
	}
	for i := n - 1; i > 0; i-- {
		buf.WriteByte(stack[i] | 0x80)
	}
	buf.WriteByte(stack[0])
}

// ParseMIDIFile reads an SMF file into a score. Only note events survive;
// performance encodings carry no lyrics or directions.
func ParseMIDIFile(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return ParseMIDI(data)
}

// ParseMIDI parses SMF bytes.
func ParseMIDI(data []byte) (*Score, error) {
	if len(data) < 14 || string(data[0:4]) != "MThd" {
		return nil, fmt.Errorf("not a standard MIDI file")
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	ntrks := int(binary.BigEndian.Uint16(data[10:12]))
	division := int(binary.BigEndian.Uint16(data[12:14]))

	score := &Score{Divisions: division}
	pos := 8 + int(headerLen)

	for t := 0; t < ntrks; t++ {
		if pos+8 > len(data) || string(data[pos:pos+4]) != "MTrk" {
			return nil, fmt.Errorf("malformed track chunk at offset %d", pos)
		}
		trackLen := int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		trackEnd := pos + 8 + trackLen
		if trackEnd > len(data) {
			return nil, fmt.Errorf("track chunk exceeds file size")
		}

		part, err := parseTrack(data[pos+8:trackEnd], t)
		if err != nil {
			return nil, err
		}
		if len(part.Measures) > 0 {
			score.Parts = append(score.Parts, part)
		}
		pos = trackEnd
	}

	return score, nil
}

func parseTrack(track []byte, index int) (Part, error) {
	part := Part{ID: fmt.Sprintf("T%d", index+1)}
	var notes []Note

	// pitch → tick the note started at
	open := make(map[byte]int)
	tick := 0
	pos := 0
	var status byte

	for pos < len(track) {
		delta, n, err := readVarint(track[pos:])
		if err != nil {
			return part, fmt.Errorf("malformed delta time in track %d: %w", index, err)
		}
		pos += n
		tick += int(delta)

		if pos >= len(track) {
			return part, fmt.Errorf("truncated track %d", index)
		}

		b := track[pos]
		if b >= 0x80 {
			status = b
			pos++
		}

		switch {
		case status == 0xFF: // meta
			if pos+1 > len(track) {
				return part, fmt.Errorf("truncated meta event")
			}
			pos++ // meta type
			l, n, err := readVarint(track[pos:])
			if err != nil {
				return part, err
			}
			pos += n + int(l)

		case status == 0xF0 || status == 0xF7: // sysex
			l, n, err := readVarint(track[pos:])
			if err != nil {
				return part, err
			}
			pos += n + int(l)

		default:
			kind := status & 0xF0
			argc := 2
			if kind == 0xC0 || kind == 0xD0 {
				argc = 1
			}
			if pos+argc > len(track) {
				return part, fmt.Errorf("truncated channel event")
			}
			switch kind {
			case 0x90:
				pitch, vel := track[pos], track[pos+1]
				if vel > 0 {
					open[pitch] = tick
				} else if start, ok := open[pitch]; ok {
					notes = append(notes, Note{Pitch: int(pitch), Duration: tick - start})
					delete(open, pitch)
				}
			case 0x80:
				pitch := track[pos]
				if start, ok := open[pitch]; ok {
					notes = append(notes, Note{Pitch: int(pitch), Duration: tick - start})
					delete(open, pitch)
				}
			}
			pos += argc
		}
	}

	if len(notes) > 0 {
		// SMF carries no barlines; present the track as one measure.
		part.Measures = []Measure{{Number: 1, Notes: notes}}
	}
	return part, nil
}

func readVarint(data []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < len(data) && i < 4; i++ {
		v = v<<7 | uint32(data[i]&0x7F)
		if data[i] < 0x80 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("unterminated variable-length quantity")
}

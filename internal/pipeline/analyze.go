package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// triadShapes maps interval patterns above a candidate root to a chord
// quality suffix.
var triadShapes = map[[2]int]string{
	{4, 7}: "",    // major
	{3, 7}: "m",   // minor
	{3, 6}: "dim", // diminished
	{4, 8}: "aug", // augmented
}

// HarmonyExecutor names the triad sounding in each measure. Measures that
// resist analysis get an error annotation instead of failing the step; the
// step itself only fails when there is no score at all to analyze.
type HarmonyExecutor struct{}

func NewHarmonyExecutor() *HarmonyExecutor { return &HarmonyExecutor{} }

func (e *HarmonyExecutor) Kind() string { return model.StepAnalyzeHarmony }
func (e *HarmonyExecutor) Fatal() bool  { return false }

func (e *HarmonyExecutor) Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error) {
	if pc.Score == nil {
		return nil, &SkipError{Reason: "no extracted score available"}
	}
	if pc.Score.MeasureCount() == 0 {
		return nil, fmt.Errorf("score has no measures to analyze")
	}

	classes := measurePitchClasses(pc.Score)

	var measures []map[string]interface{}
	annotated := 0
	for _, number := range sortedMeasureNumbers(classes) {
		entry := map[string]interface{}{"measure": number}
		chord, err := nameTriad(classes[number])
		if err != nil {
			entry["error"] = err.Error()
			annotated++
		} else {
			entry["chord"] = chord
		}
		measures = append(measures, entry)
	}

	return map[string]interface{}{
		"measures":   measures,
		"unresolved": annotated,
	}, nil
}

// measurePitchClasses merges the pitch classes of every part, keyed by
// measure number, so harmony reflects all voices sounding together.
func measurePitchClasses(score *music.Score) map[int]map[int]bool {
	classes := make(map[int]map[int]bool)
	for _, part := range score.Parts {
		for _, m := range part.Measures {
			set := classes[m.Number]
			if set == nil {
				set = make(map[int]bool)
				classes[m.Number] = set
			}
			for _, n := range m.Notes {
				set[((n.Pitch%12)+12)%12] = true
			}
		}
	}
	return classes
}

func sortedMeasureNumbers(classes map[int]map[int]bool) []int {
	numbers := make([]int, 0, len(classes))
	for n := range classes {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// nameTriad finds a root whose triad intervals match the pitch-class set.
func nameTriad(set map[int]bool) (string, error) {
	if len(set) == 0 {
		return "", fmt.Errorf("no pitched notes")
	}
	if len(set) > 4 {
		return "", fmt.Errorf("too many distinct pitch classes (%d)", len(set))
	}

	if len(set) == 1 {
		for pc := range set {
			return pitchClassNames[pc], nil
		}
	}

	for root := 0; root < 12; root++ {
		if !set[root] {
			continue
		}
		var intervals []int
		for pc := range set {
			if pc != root {
				intervals = append(intervals, ((pc-root)+12)%12)
			}
		}
		sort.Ints(intervals)
		if len(intervals) == 2 {
			if suffix, ok := triadShapes[[2]int{intervals[0], intervals[1]}]; ok {
				return pitchClassNames[root] + suffix, nil
			}
		}
	}
	return "", fmt.Errorf("no triad fits pitch classes")
}

// FormExecutor labels structurally identical measures with the same letter
// and reports the resulting section form, AABA-style.
type FormExecutor struct{}

func NewFormExecutor() *FormExecutor { return &FormExecutor{} }

func (e *FormExecutor) Kind() string { return model.StepAnalyzeForm }
func (e *FormExecutor) Fatal() bool  { return false }

func (e *FormExecutor) Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error) {
	if pc.Score == nil {
		return nil, &SkipError{Reason: "no extracted score available"}
	}
	if len(pc.Score.Parts) == 0 {
		return nil, fmt.Errorf("score has no parts to analyze")
	}

	// Form follows the first part; accompaniment rarely changes the
	// sectional reading.
	lead := pc.Score.Parts[0]

	labels := make(map[string]byte)
	var form []byte
	unlabeled := 0

	for _, m := range lead.Measures {
		fp := measureFingerprint(m)
		label, ok := labels[fp]
		if !ok {
			if len(labels) < len(formLabels) {
				label = formLabels[len(labels)]
			} else {
				// More distinct measures than letters; lump the rest.
				label = '?'
				unlabeled++
			}
			labels[fp] = label
		}
		form = append(form, label)
	}

	detail := map[string]interface{}{
		"form":     string(form),
		"sections": len(labels),
		"measures": len(form),
	}
	if unlabeled > 0 {
		detail["unlabeled_sections"] = unlabeled
	}
	return detail, nil
}

const formLabels = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func measureFingerprint(m music.Measure) string {
	var b strings.Builder
	for _, n := range m.Notes {
		fmt.Fprintf(&b, "%d:%d;", n.Pitch, n.Duration)
	}
	return b.String()
}

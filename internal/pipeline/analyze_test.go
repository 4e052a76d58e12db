package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

func scoreContext(score *music.Score) *Context {
	pc := newContext(&model.TaskDescriptor{TaskID: "t1"})
	pc.Score = score
	return pc
}

func TestHarmony_NamesTriads(t *testing.T) {
	score := &music.Score{
		Divisions: 4,
		Parts: []music.Part{{
			ID: "P1",
			Measures: []music.Measure{
				{Number: 1, Notes: []music.Note{{Pitch: 60}, {Pitch: 64}, {Pitch: 67}}}, // C E G
				{Number: 2, Notes: []music.Note{{Pitch: 57}, {Pitch: 60}, {Pitch: 64}}}, // A C E
			},
		}},
	}

	exec := NewHarmonyExecutor()
	detail, err := exec.Execute(context.Background(), scoreContext(score), model.Step{Kind: model.StepAnalyzeHarmony})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	measures := detail["measures"].([]map[string]interface{})
	if len(measures) != 2 {
		t.Fatalf("expected 2 measures, got %d", len(measures))
	}
	if measures[0]["chord"] != "C" {
		t.Errorf("measure 1: expected C major, got %v", measures[0]["chord"])
	}
	if measures[1]["chord"] != "Am" {
		t.Errorf("measure 2: expected A minor, got %v", measures[1]["chord"])
	}
	if detail["unresolved"] != 0 {
		t.Errorf("expected no unresolved measures, got %v", detail["unresolved"])
	}
}

func TestHarmony_AnnotatesUnresolvableMeasures(t *testing.T) {
	score := &music.Score{
		Parts: []music.Part{{
			ID: "P1",
			Measures: []music.Measure{
				// chromatic cluster, no triad fits
				{Number: 1, Notes: []music.Note{{Pitch: 60}, {Pitch: 61}, {Pitch: 62}, {Pitch: 63}, {Pitch: 64}}},
				{Number: 2, Notes: []music.Note{{Pitch: 62}, {Pitch: 66}, {Pitch: 69}}}, // D F# A
			},
		}},
	}

	exec := NewHarmonyExecutor()
	detail, err := exec.Execute(context.Background(), scoreContext(score), model.Step{Kind: model.StepAnalyzeHarmony})
	if err != nil {
		t.Fatalf("one bad measure must not fail the step, got %v", err)
	}

	measures := detail["measures"].([]map[string]interface{})
	if measures[0]["error"] == nil {
		t.Error("expected error annotation on the cluster measure")
	}
	if measures[1]["chord"] != "D" {
		t.Errorf("expected D major, got %v", measures[1]["chord"])
	}
	if detail["unresolved"] != 1 {
		t.Errorf("expected 1 unresolved measure, got %v", detail["unresolved"])
	}
}

func TestHarmony_MergesParts(t *testing.T) {
	// Root in the bass part, third and fifth in the melody.
	score := &music.Score{
		Parts: []music.Part{
			{ID: "P1", Measures: []music.Measure{{Number: 1, Notes: []music.Note{{Pitch: 64}, {Pitch: 67}}}}},
			{ID: "P2", Measures: []music.Measure{{Number: 1, Notes: []music.Note{{Pitch: 48}}}}},
		},
	}

	exec := NewHarmonyExecutor()
	detail, err := exec.Execute(context.Background(), scoreContext(score), model.Step{Kind: model.StepAnalyzeHarmony})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	measures := detail["measures"].([]map[string]interface{})
	if measures[0]["chord"] != "C" {
		t.Errorf("expected C major from combined parts, got %v", measures[0]["chord"])
	}
}

func TestHarmony_SkipsWithoutScore(t *testing.T) {
	exec := NewHarmonyExecutor()
	_, err := exec.Execute(context.Background(), newContext(&model.TaskDescriptor{TaskID: "t1"}), model.Step{Kind: model.StepAnalyzeHarmony})

	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
}

func TestForm_LabelsRepeatedMeasures(t *testing.T) {
	a := []music.Note{{Pitch: 60, Duration: 4}, {Pitch: 62, Duration: 4}}
	b := []music.Note{{Pitch: 67, Duration: 8}}

	score := &music.Score{
		Parts: []music.Part{{
			ID: "P1",
			Measures: []music.Measure{
				{Number: 1, Notes: a},
				{Number: 2, Notes: a},
				{Number: 3, Notes: b},
				{Number: 4, Notes: a},
			},
		}},
	}

	exec := NewFormExecutor()
	detail, err := exec.Execute(context.Background(), scoreContext(score), model.Step{Kind: model.StepAnalyzeForm})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if detail["form"] != "AABA" {
		t.Errorf("expected AABA, got %v", detail["form"])
	}
	if detail["sections"] != 2 {
		t.Errorf("expected 2 sections, got %v", detail["sections"])
	}
}

func TestForm_LabelsStayPrintableBeyondAlphabet(t *testing.T) {
	// More distinct measures than there are single-letter labels.
	measures := make([]music.Measure, 0, 60)
	for i := 0; i < 60; i++ {
		measures = append(measures, music.Measure{
			Number: i + 1,
			Notes:  []music.Note{{Pitch: 30 + i, Duration: 4}},
		})
	}
	score := &music.Score{Parts: []music.Part{{ID: "P1", Measures: measures}}}

	exec := NewFormExecutor()
	detail, err := exec.Execute(context.Background(), scoreContext(score), model.Step{Kind: model.StepAnalyzeForm})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	form := detail["form"].(string)
	if len(form) != 60 {
		t.Fatalf("expected 60 labels, got %d", len(form))
	}
	if form[0] != 'A' || form[25] != 'Z' || form[26] != 'a' || form[51] != 'z' {
		t.Errorf("unexpected label sequence: %q", form)
	}
	for i := 52; i < 60; i++ {
		if form[i] != '?' {
			t.Errorf("measure %d: expected '?', got %q", i+1, form[i])
		}
	}
	if detail["unlabeled_sections"] != 8 {
		t.Errorf("expected 8 unlabeled sections, got %v", detail["unlabeled_sections"])
	}
}

func TestForm_SkipsWithoutScore(t *testing.T) {
	exec := NewFormExecutor()
	_, err := exec.Execute(context.Background(), newContext(&model.TaskDescriptor{TaskID: "t1"}), model.Step{Kind: model.StepAnalyzeForm})

	var skip *SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected SkipError, got %v", err)
	}
}

package model

// Step kinds understood by the pipeline. The descriptor may carry kinds not
// listed here; the runner records those as skipped_unknown_type.
const (
	StepExtractMusicData     = "extract_music_data"
	StepExtractTextFromScore = "extract_text_from_score"
	StepTranslateStyle       = "translate_style"
	StepGenerateOutputFile   = "generate_output_file"
	StepAnalyzeHarmony       = "analyze_harmony"
	StepAnalyzeForm          = "analyze_form"
)

// File location kinds
const (
	LocationBlob       = "blob"
	LocationFilesystem = "filesystem"
)

// FileLocation points at the uploaded source file.
type FileLocation struct {
	Kind      string `json:"kind"`
	Container string `json:"container"`
	Key       string `json:"key"`
}

// Step is one declared unit of work in a task's pipeline. Order in the
// descriptor is significant: later steps consume outputs of earlier ones.
type Step struct {
	Kind       string                 `json:"kind"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// TaskDescriptor is the immutable input to a pipeline run. TaskID is assigned
// once before enqueue and is the sole join key across storage, queue and the
// status store.
type TaskDescriptor struct {
	TaskID       string                 `json:"task_id"`
	FileLocation FileLocation           `json:"file_location"`
	Steps        []Step                 `json:"steps"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Param reads a string parameter from a step, with a default.
func (s Step) Param(name, def string) string {
	if s.Parameters == nil {
		return def
	}
	if v, ok := s.Parameters[name].(string); ok && v != "" {
		return v
	}
	return def
}

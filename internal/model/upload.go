package model

// Output formats supported by generate_output_file.
const (
	OutputFormatMIDI     = "midi"
	OutputFormatMusicXML = "musicxml"
	OutputFormatMP3      = "mp3"
)

// UploadRequest carries the non-file fields of a sheet-music upload.
type UploadRequest struct {
	OutputFormat   string `json:"outputFormat" validate:"omitempty,oneof=midi musicxml mp3"`
	TranslateStyle bool   `json:"translateStyle"`
	AnalyzeScore   bool   `json:"analyzeScore"`
}

// UploadResponse represents the response for a sheet-music upload
type UploadResponse struct {
	TaskID      string `json:"task_id"`
	UploadedKey string `json:"uploaded_key"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

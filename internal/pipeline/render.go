package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bardify/api/internal/client"
	"github.com/bardify/api/internal/model"
	"github.com/bardify/api/internal/music"
)

// RenderExecutor serializes the extracted score into the requested output
// format and uploads the artifact next to the task's other results.
type RenderExecutor struct {
	storage client.StorageClient
	synth   music.Synthesizer
}

func NewRenderExecutor(storage client.StorageClient, synth music.Synthesizer) *RenderExecutor {
	return &RenderExecutor{storage: storage, synth: synth}
}

func (e *RenderExecutor) Kind() string { return model.StepGenerateOutputFile }
func (e *RenderExecutor) Fatal() bool  { return false }

func (e *RenderExecutor) Execute(ctx context.Context, pc *Context, step model.Step) (map[string]interface{}, error) {
	if pc.Score == nil {
		return nil, &SkipError{Reason: "no extracted score available"}
	}
	if e.storage == nil {
		return nil, fmt.Errorf("object storage not configured")
	}

	format := step.Param("format", model.OutputFormatMIDI)

	var buf bytes.Buffer
	var ext, contentType string
	var err error

	switch format {
	case model.OutputFormatMIDI:
		ext, contentType = "mid", "audio/midi"
		err = music.WriteMIDI(&buf, pc.Score)
	case model.OutputFormatMusicXML:
		ext, contentType = "musicxml", "application/vnd.recordare.musicxml+xml"
		err = music.WriteMusicXML(&buf, pc.Score)
	case model.OutputFormatMP3:
		ext, contentType = "mp3", "audio/mpeg"
		var audio []byte
		audio, err = e.synth.Synthesize(ctx, pc.Score)
		if err == nil {
			_, err = buf.Write(audio)
		}
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s output: %w", format, err)
	}

	key := fmt.Sprintf("results/%s/output.%s", pc.Task.TaskID, ext)
	url, err := e.storage.Upload(ctx, key, &buf, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload rendered output: %w", err)
	}

	return map[string]interface{}{
		"format": format,
		"location": map[string]interface{}{
			"kind": model.LocationBlob,
			"key":  key,
		},
		"url": url,
	}, nil
}

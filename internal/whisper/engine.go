package whisper

import "context"

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
}

// Engine runs one transcription against a model file on disk.
type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// LoadedModel is a model that is ready to transcribe audio sources.
type LoadedModel interface {
	Transcribe(ctx context.Context, source string) (string, error)
}

// Loader turns a size selector into a LoadedModel. Loading may be slow and
// may fail when the model artifact or the engine is unavailable.
type Loader interface {
	LoadModel(ctx context.Context, size ModelSize) (LoadedModel, error)
}

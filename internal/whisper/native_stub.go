//go:build !whispercpp

package whisper

import (
	"context"

	"go.uber.org/zap"
)

func NativeAvailable() bool { return false }

// NativeEngine is a placeholder when the binary is built without the
// whispercpp tag.
type NativeEngine struct{}

func NewNativeEngine(*zap.Logger) (*NativeEngine, error) {
	return nil, ErrNativeUnavailable
}

func (e *NativeEngine) Transcribe(context.Context, TranscriptionRequest) (string, error) {
	return "", ErrNativeUnavailable
}

func (e *NativeEngine) Close() error { return nil }

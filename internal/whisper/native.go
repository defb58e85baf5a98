//go:build whispercpp

package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
)

const nativeSampleRate = 16000

func NativeAvailable() bool { return true }

// NativeEngine runs whisper.cpp in-process. Loaded models are cached by path
// and released by Close.
type NativeEngine struct {
	mu     sync.Mutex
	models map[string]whispercpp.Model
	logger *zap.Logger
}

func NewNativeEngine(logger *zap.Logger) (*NativeEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NativeEngine{models: make(map[string]whispercpp.Model), logger: logger}, nil
}

func (e *NativeEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return "", errors.New("audio path is required")
	}

	model, err := e.model(req.ModelPath)
	if err != nil {
		return "", err
	}

	samples, err := decodeWAV(req.AudioPath)
	if err != nil {
		return "", err
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language %q: %w", lang, err)
	}
	wctx.SetTranslate(false)

	var segments []string
	err = wctx.Process(samples, func() bool {
		return ctx.Err() == nil
	}, func(segment whispercpp.Segment) {
		if text := strings.TrimSpace(segment.Text); text != "" {
			segments = append(segments, text)
		}
	}, nil)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	e.logger.Debug("native transcription finished", zap.Int("segments", len(segments)), zap.Int("samples", len(samples)))
	return strings.Join(segments, " "), nil
}

func (e *NativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for path, model := range e.models {
		if err := model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close model %s: %w", path, err))
		}
		delete(e.models, path)
	}
	return errors.Join(errs...)
}

func (e *NativeEngine) model(path string) (whispercpp.Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if model, ok := e.models[path]; ok {
		return model, nil
	}

	e.logger.Debug("loading native whisper model", zap.String("model", path))
	model, err := whispercpp.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", path, err)
	}
	e.models[path] = model
	return model, nil
}

// decodeWAV reads 16kHz PCM WAV and downmixes to mono float32 in [-1, 1].
func decodeWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a PCM WAV file; the native engine only reads WAV", path)
	}
	if dec.SampleRate != nativeSampleRate {
		return nil, fmt.Errorf("native engine needs %d Hz audio, got %d Hz", nativeSampleRate, dec.SampleRate)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	return downmix(buf, bitDepth), nil
}

func downmix(buf *audio.IntBuffer, bitDepth int) []float32 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		samples[i] = sum / float32(channels)
	}
	return samples
}

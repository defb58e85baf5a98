package whisper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fmueller/whisperdesk/internal/download"
	"go.uber.org/zap"
)

const (
	EngineBundled = "bundled"
	EngineNative  = "native"
)

var ErrNativeUnavailable = errors.New("native whisper engine not compiled in; rebuild with -tags whispercpp")

type BackendOptions struct {
	ModelDir     string
	Language     string
	EngineKind   string
	AutoDownload bool
	NoProgress   bool
	Logger       *zap.Logger

	// Engine overrides engine construction; used by tests and embedders.
	Engine     Engine
	DownloadFn func(ctx context.Context, opts download.Options) error
}

// Backend resolves model artifacts on disk and binds them to an engine.
type Backend struct {
	opts BackendOptions

	mu     sync.Mutex
	engine Engine
}

func NewBackend(opts BackendOptions) *Backend {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DownloadFn == nil {
		opts.DownloadFn = download.DownloadFile
	}
	if strings.TrimSpace(opts.EngineKind) == "" {
		opts.EngineKind = EngineBundled
	}
	return &Backend{opts: opts}
}

func (b *Backend) LoadModel(ctx context.Context, size ModelSize) (LoadedModel, error) {
	resolved, err := ResolveModel(size, b.opts.ModelDir)
	if err != nil {
		return nil, err
	}

	if resolved.NeedsDownload {
		if !b.opts.AutoDownload {
			return nil, fmt.Errorf("model %q is missing at %s; run `whisperdesk setup --model %s` or enable auto-download", resolved.Size, resolved.Path, resolved.Size)
		}

		b.opts.Logger.Info("model not found, downloading", zap.String("model", resolved.Size.String()), zap.String("destination", resolved.Path))
		if err := b.opts.DownloadFn(ctx, download.Options{
			URL:            resolved.URL,
			Destination:    resolved.Path,
			ExpectedSHA256: resolved.SHA256,
			NoProgress:     b.opts.NoProgress,
			Logger:         b.opts.Logger,
		}); err != nil {
			return nil, fmt.Errorf("download model %q: %w", resolved.Size, err)
		}
	}

	engine, err := b.resolveEngine()
	if err != nil {
		return nil, err
	}

	b.opts.Logger.Debug("model ready", zap.String("model", resolved.Size.String()), zap.String("path", resolved.Path))
	return &boundModel{
		engine:    engine,
		modelPath: resolved.Path,
		language:  b.opts.Language,
	}, nil
}

// Close releases engine resources such as natively loaded models.
func (b *Backend) Close() error {
	if b.opts.Engine != nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if closer, ok := b.engine.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// resolveEngine caches the first engine that could be built. Failures are
// not cached so a later job can pick up a freshly installed engine.
func (b *Backend) resolveEngine() (Engine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.engine != nil {
		return b.engine, nil
	}
	if b.opts.Engine != nil {
		b.engine = b.opts.Engine
		return b.engine, nil
	}

	switch b.opts.EngineKind {
	case EngineBundled:
		engine, err := NewBundledEngine(b.opts.Logger)
		if err != nil {
			return nil, err
		}
		b.engine = engine
	case EngineNative:
		engine, err := NewNativeEngine(b.opts.Logger)
		if err != nil {
			return nil, err
		}
		b.engine = engine
	default:
		return nil, fmt.Errorf("unknown engine %q (want %s or %s)", b.opts.EngineKind, EngineBundled, EngineNative)
	}
	return b.engine, nil
}

type boundModel struct {
	engine    Engine
	modelPath string
	language  string
}

func (m *boundModel) Transcribe(ctx context.Context, source string) (string, error) {
	text, err := m.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: source,
		ModelPath: m.modelPath,
		Language:  m.language,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

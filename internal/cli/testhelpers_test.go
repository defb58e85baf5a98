package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fmueller/whisperdesk/internal/whisper"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runAppCommand(t, newAppState(), args)
}

func runAppCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// isolated appends flags that keep a command away from the user's config,
// model directory and history database.
func isolated(t *testing.T, args ...string) []string {
	t.Helper()
	return append(args, "--config=", "--history=false", "--no-progress", "--model-dir", t.TempDir())
}

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

type stubLoader struct {
	mu      sync.Mutex
	sizes   []whisper.ModelSize
	text    string
	err     error
	started chan struct{}
	block   chan struct{}
}

func (s *stubLoader) LoadModel(_ context.Context, size whisper.ModelSize) (whisper.LoadedModel, error) {
	s.mu.Lock()
	s.sizes = append(s.sizes, size)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s, nil
}

func (s *stubLoader) Transcribe(ctx context.Context, _ string) (string, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, nil
}

func (s *stubLoader) Sizes() []whisper.ModelSize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]whisper.ModelSize(nil), s.sizes...)
}

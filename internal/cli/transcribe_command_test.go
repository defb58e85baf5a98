package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fmueller/whisperdesk/internal/clipboard"
	"github.com/fmueller/whisperdesk/internal/whisper"
	"github.com/stretchr/testify/require"
)

func newTestApp(loader whisper.Loader, copied *[]string) *appState {
	app := newAppState()
	app.loader = loader
	app.copyFn = func(_ context.Context, value string) error {
		*copied = append(*copied, value)
		return nil
	}
	return app
}

func TestTranscribeCommandPrintsTranscript(t *testing.T) {
	t.Parallel()

	var copied []string
	loader := &stubLoader{text: "Hello world."}
	app := newTestApp(loader, &copied)

	stdout, _, err := runAppCommand(t, app, isolated(t, "transcribe", writeAudioFile(t), "--model", "small", "--copy"))
	require.NoError(t, err)
	require.Equal(t, "Hello world.\n", stdout)
	require.Equal(t, []string{"Hello world."}, copied)
	require.Equal(t, []whisper.ModelSize{whisper.ModelSmall}, loader.Sizes())
}

func TestTranscribeCommandSkipsCopyForBlankTranscript(t *testing.T) {
	t.Parallel()

	var copied []string
	app := newTestApp(&stubLoader{text: "[BLANK_AUDIO]"}, &copied)

	stdout, _, err := runAppCommand(t, app, isolated(t, "transcribe", "--copy", writeAudioFile(t)))
	require.NoError(t, err)
	require.Empty(t, copied)
	require.Equal(t, "[BLANK_AUDIO]\n", stdout)
}

func TestTranscribeCommandCopiesBlankWhenCopyEmptyEnabled(t *testing.T) {
	t.Parallel()

	var copied []string
	app := newTestApp(&stubLoader{text: "[BLANK_AUDIO]"}, &copied)

	stdout, _, err := runAppCommand(t, app, isolated(t, "transcribe", "--copy", "--copy-empty", writeAudioFile(t)))
	require.NoError(t, err)
	require.Len(t, copied, 1)
	require.Equal(t, "[BLANK_AUDIO]\n", stdout)
}

func TestTranscribeCommandToleratesMissingClipboard(t *testing.T) {
	t.Parallel()

	app := newAppState()
	app.loader = &stubLoader{text: "kept on stdout"}
	app.copyFn = func(context.Context, string) error { return clipboard.ErrUnavailable }

	stdout, _, err := runAppCommand(t, app, isolated(t, "transcribe", "--copy", writeAudioFile(t)))
	require.NoError(t, err)
	require.Equal(t, "kept on stdout\n", stdout)
}

func TestTranscribeCommandReportsJobFailure(t *testing.T) {
	t.Parallel()

	var copied []string
	app := newTestApp(&stubLoader{err: errors.New("whisper engine not found")}, &copied)

	stdout, _, err := runAppCommand(t, app, isolated(t, "transcribe", "--copy", writeAudioFile(t)))
	require.Error(t, err)
	require.Equal(t, "whisper engine not found", err.Error())
	require.Empty(t, stdout)
	require.Empty(t, copied)
}

func TestTranscribeCommandTimesOut(t *testing.T) {
	t.Parallel()

	var copied []string
	app := newTestApp(&stubLoader{block: make(chan struct{})}, &copied)

	_, _, err := runAppCommand(t, app, isolated(t, "transcribe", "--timeout", "30ms", "--poll-interval", "5ms", writeAudioFile(t)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "job timed out after 30ms")
}

func TestTranscribeCommandCancelsOnInterrupt(t *testing.T) {
	t.Parallel()

	loader := &stubLoader{started: make(chan struct{}), block: make(chan struct{})}
	app := newAppState()
	app.loader = loader

	cmd := newRootCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(isolated(t, "transcribe", "--poll-interval", "5ms", writeAudioFile(t)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-loader.started:
		case <-time.After(2 * time.Second):
		}
		cancel()
	}()

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	require.Equal(t, "job cancelled", err.Error())
}

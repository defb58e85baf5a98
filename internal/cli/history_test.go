package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/whisperdesk/internal/history"
	"github.com/fmueller/whisperdesk/internal/job"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestHistoryListsFinishedJobs(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	cfgPath := writeConfig(t, "history:\n  enabled: true\n  path: "+dbPath+"\n  limit: 10\n")
	modelDir := t.TempDir()
	audioPath := writeAudioFile(t)

	ok := newAppState()
	ok.loader = &stubLoader{text: "first transcript"}
	_, _, err := runAppCommand(t, ok, []string{"transcribe", audioPath, "--config", cfgPath, "--model-dir", modelDir, "--no-progress"})
	require.NoError(t, err)

	failing := newAppState()
	failing.loader = &stubLoader{err: errors.New("engine crashed")}
	_, _, err = runAppCommand(t, failing, []string{"transcribe", audioPath, "--config", cfgPath, "--model-dir", modelDir, "--no-progress"})
	require.Error(t, err)

	stdout, _, err := runCommand(t, []string{"history", "--config", cfgPath})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "OUTCOME")
	require.Contains(t, lines[1], "failure")
	require.Contains(t, lines[1], "engine crashed")
	require.Contains(t, lines[2], "success")
	require.Contains(t, lines[2], "first transcript")

	stdout, _, err = runCommand(t, []string{"history", "--config", cfgPath, "--limit", "1"})
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 2)
}

func TestHistoryEmpty(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, "history:\n  path: "+filepath.Join(t.TempDir(), "history.db")+"\n")

	stdout, _, err := runCommand(t, []string{"history", "--config", cfgPath})
	require.NoError(t, err)
	require.Equal(t, "No transcriptions recorded yet.\n", stdout)
}

func TestExcerptPrefersMessageAndTruncates(t *testing.T) {
	t.Parallel()

	require.Equal(t, "job cancelled", excerpt(history.Entry{Outcome: job.KindFailure, Message: "job cancelled", Text: "ignored"}))
	require.Equal(t, "two lines", excerpt(history.Entry{Text: "two\n  lines"}))

	long := excerpt(history.Entry{Text: strings.Repeat("a", 100)})
	require.Len(t, long, historyExcerptLen)
	require.True(t, strings.HasSuffix(long, "..."))
}

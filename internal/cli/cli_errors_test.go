package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIErrorCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{
			name:        "unknown command",
			args:        []string{"badcmd"},
			errContains: "unknown command",
		},
		{
			name:        "unknown root flag",
			args:        []string{"--badflag"},
			errContains: "unknown flag",
		},
		{
			name:        "unknown subcommand flag",
			args:        []string{"transcribe", "--bogus", "f.wav"},
			errContains: "unknown flag",
		},
		{
			name:        "transcribe missing arg",
			args:        []string{"transcribe"},
			errContains: "accepts 1 arg(s)",
		},
		{
			name:        "transcribe too many args",
			args:        []string{"transcribe", "a.wav", "b.wav"},
			errContains: "accepts 1 arg(s)",
		},
		{
			name:        "transcribe nonexistent file",
			args:        isolated(t, "transcribe", "/no/such/file.wav"),
			errContains: "audio file not found",
		},
		{
			name:        "unknown model size",
			args:        isolated(t, "models", "--model", "huge"),
			errContains: "unknown model size",
		},
		{
			name:        "unknown engine",
			args:        isolated(t, "models", "--engine", "gpu"),
			errContains: "config engine must be bundled or native",
		},
		{
			name:        "missing explicit config file",
			args:        []string{"models", "--config", "/no/such/whisperdesk.yaml"},
			errContains: "read config file",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCommand(t, tt.args)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestHistoryRejectedWhenDisabled(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, isolated(t, "history"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "job history is disabled")
}

func TestVersionFlagOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"--version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "whisperdesk v"), "expected version prefix, got: %s", stdout)
}

func TestVersionCommandOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "whisperdesk v"), "expected version prefix, got: %s", stdout)
}

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONWritesStructuredFields(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	logger := New(Options{JSON: true, Writer: out})
	logger.Info("job finished")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "job finished", entry["msg"])
}

func TestNewConsoleHidesDebugUnlessVerbose(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	New(Options{Writer: out}).Debug("hidden")
	require.Empty(t, out.String())

	New(Options{Verbose: true, Writer: out}).Debug("shown")
	require.Contains(t, out.String(), "shown")
}

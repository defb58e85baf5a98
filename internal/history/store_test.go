package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/fmueller/whisperdesk/internal/job"
	"github.com/fmueller/whisperdesk/internal/whisper"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, keep int) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"), keep, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(id string, finished time.Time, kind job.Kind) job.Result {
	res := job.Result{
		JobID:      id,
		Kind:       kind,
		Request:    job.Request{Source: id + ".wav", Model: whisper.ModelBase},
		StartedAt:  finished.Add(-2 * time.Second),
		FinishedAt: finished,
	}
	if kind == job.KindSuccess {
		res.Text = "text of " + id
	} else {
		res.Message = "decode error"
	}
	return res
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	s := openStore(t, 0)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, result("a", base, job.KindSuccess)))
	require.NoError(t, s.Record(ctx, result("b", base.Add(time.Minute), job.KindFailure)))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "b", entries[0].JobID)
	require.Equal(t, job.KindFailure, entries[0].Outcome)
	require.Equal(t, "decode error", entries[0].Message)
	require.Equal(t, "b.wav", entries[0].Source)
	require.Equal(t, "base", entries[0].Model)

	require.Equal(t, "a", entries[1].JobID)
	require.Equal(t, "text of a", entries[1].Text)
	require.True(t, entries[1].FinishedAt.Equal(base))
	require.True(t, entries[1].StartedAt.Equal(base.Add(-2*time.Second)))
}

func TestRecordIsIdempotentPerJob(t *testing.T) {
	t.Parallel()

	s := openStore(t, 0)
	ctx := context.Background()
	res := result("dup", time.Now(), job.KindSuccess)

	require.NoError(t, s.Record(ctx, res))
	require.NoError(t, s.Record(ctx, res))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRecordPrunesToKeep(t *testing.T) {
	t.Parallel()

	s := openStore(t, 3)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, result(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute), job.KindSuccess)))
	}

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "job-4", entries[0].JobID)
	require.Equal(t, "job-2", entries[2].JobID)
}

func TestHookRecordsResult(t *testing.T) {
	t.Parallel()

	s := openStore(t, 0)
	s.Hook(context.Background())(result("hooked", time.Now(), job.KindSuccess))

	entries, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "hooked", entries[0].JobID)
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/whisperdesk/internal/job"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Entry is one finished job as stored on disk.
type Entry struct {
	JobID      string
	Source     string
	Model      string
	Outcome    job.Kind
	Text       string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store keeps a bounded log of finished jobs in SQLite.
type Store struct {
	db     *sql.DB
	keep   int
	logger *zap.Logger
}

// Open creates the database at path if needed. keep bounds the number of
// retained entries; zero keeps everything.
func Open(ctx context.Context, path string, keep int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, keep: keep, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    model TEXT NOT NULL,
    outcome TEXT NOT NULL,
    text TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_finished ON jobs(finished_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores res and trims the log to the configured size.
func (s *Store) Record(ctx context.Context, res job.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, source, model, outcome, text, message, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO NOTHING`,
		res.JobID, res.Request.Source, res.Request.Model.String(), string(res.Kind),
		res.Text, res.Message, res.StartedAt.UnixMilli(), res.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record job %s: %w", res.JobID, err)
	}
	return s.Prune(ctx)
}

// Recent lists up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, source, model, outcome, text, message, started_at, finished_at
		 FROM jobs ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			outcome           string
			started, finished int64
		)
		if err := rows.Scan(&e.JobID, &e.Source, &e.Model, &outcome, &e.Text, &e.Message, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Outcome = job.Kind(outcome)
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Prune(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE rowid IN (
		SELECT rowid FROM jobs ORDER BY finished_at DESC, rowid DESC LIMIT -1 OFFSET ?
	)`, s.keep)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("pruned job history", zap.Int64("removed", n))
	}
	return nil
}

// Hook adapts the store to a job completion hook. Write failures are logged
// and never reach the job.
func (s *Store) Hook(ctx context.Context) func(job.Result) {
	return func(res job.Result) {
		if err := s.Record(ctx, res); err != nil {
			s.logger.Warn("failed to record job history", zap.String("job_id", res.JobID), zap.Error(err))
		}
	}
}

package resultstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/config"
	_ "modernc.org/sqlite"
)

// Run is a recorded benchmark run.
type Run struct {
	ID         string
	Dataset    string
	Backends   []string
	Samples    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Result is one scored (sample, backend) pair.
type Result struct {
	ID          int64
	RunID       string
	SampleIndex int
	AudioPath   string
	Reference   string
	BackendID   string
	Transcript  string
	Latency     time.Duration
	Distance    int
	Attempts    int
	Error       string
	CreatedAt   time.Time
}

// Failed reports whether the backend produced no transcript.
func (r Result) Failed() bool { return r.Error != "" }

// Store keeps benchmark history in SQLite. A Store opened without a path is
// disabled and every method is a no-op.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the result store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("result store prune on start failed", slog.String("error", err.Error()))
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    dataset TEXT,
    backends TEXT,
    samples INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    sample_index INTEGER NOT NULL,
    audio_path TEXT,
    reference TEXT,
    backend_id TEXT NOT NULL,
    transcript TEXT,
    latency_ms INTEGER,
    distance INTEGER,
    attempts INTEGER,
    error TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_results_run_sample ON results(run_id, sample_index);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Enabled reports whether results are persisted.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if s.db == nil {
		return nil
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, dataset, backends, started_at) VALUES(?, ?, ?, ?)`,
		run.ID, run.Dataset, strings.Join(run.Backends, ","), run.StartedAt.UTC())
	return err
}

// AppendResults writes the outcomes of one sample in a single transaction.
func (s *Store) AppendResults(ctx context.Context, results []Result) (err error) {
	if s.db == nil || len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	now := s.clock().UTC()
	for _, r := range results {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.CreatedAt = r.CreatedAt.UTC()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO results(run_id, sample_index, audio_path, reference, backend_id, transcript, latency_ms, distance, attempts, error, created_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.SampleIndex, r.AudioPath, r.Reference, r.BackendID, r.Transcript,
			r.Latency.Milliseconds(), r.Distance, r.Attempts, r.Error, r.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FinishRun stamps the completion time and sample count of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, samples int, finished time.Time) error {
	if s.db == nil {
		return nil
	}
	if finished.IsZero() {
		finished = s.clock()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET samples = ?, finished_at = ? WHERE run_id = ?`,
		samples, finished.UTC(), runID)
	return err
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, dataset, backends, samples, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var backends string
		var started, finished any
		if err := rows.Scan(&r.ID, &r.Dataset, &backends, &r.Samples, &started, &finished); err != nil {
			return nil, err
		}
		if backends != "" {
			r.Backends = strings.Split(backends, ",")
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListResults retrieves the results of a run ordered by sample.
func (s *Store) ListResults(ctx context.Context, runID string) ([]Result, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, sample_index, audio_path, reference, backend_id, transcript, latency_ms, distance, attempts, error, created_at
		 FROM results WHERE run_id = ? ORDER BY sample_index ASC, id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var latencyMS int64
		var created any
		if err := rows.Scan(&r.ID, &r.RunID, &r.SampleIndex, &r.AudioPath, &r.Reference, &r.BackendID,
			&r.Transcript, &latencyMS, &r.Distance, &r.Attempts, &r.Error, &created); err != nil {
			return nil, err
		}
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		r.CreatedAt = parseTime(created)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Prune applies configured retention (called on open and after each run).
func (s *Store) Prune(ctx context.Context) (err error) {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxRuns > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id IN (
			SELECT run_id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxRuns)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// timeLayouts covers the encodings the sqlite driver may hand back for
// TIMESTAMP columns.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	case []byte:
		return parseTime(string(t))
	}
	return time.Time{}
}

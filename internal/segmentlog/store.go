// Package segmentlog persists per-segment pipeline outcome records to a
// local SQLite database for operator inspection. Only metrics are stored,
// never transcript text or audio.
package segmentlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/config"
	_ "modernc.org/sqlite"
)

// Record is one pipeline run's outcome.
type Record struct {
	ID                 int64
	SessionID          string
	Sequence           int64
	State              string
	LanguagesProcessed []string
	LanguagesFailed    []string
	CacheHits          int
	CacheMisses        int
	TranslateMS        int64
	SynthesizeMS       int64
	BroadcastMS        int64
	Delivered          int
	Pruned             int
	BufferSkipped      int
	CreatedAt          time.Time
}

// Store wraps a SQLite-backed segment outcome log.
type Store struct {
	db    *sql.DB
	cfg   config.SegmentLogConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config. In ephemeral retention
// mode no database is opened and all writes are no-ops.
func Open(ctx context.Context, cfg config.SegmentLogConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
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

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("segment log vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("segment log prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    state TEXT NOT NULL,
    languages_processed TEXT,
    languages_failed TEXT,
    cache_hits INTEGER,
    cache_misses INTEGER,
    translate_ms INTEGER,
    synthesize_ms INTEGER,
    broadcast_ms INTEGER,
    delivered INTEGER,
    pruned INTEGER,
    buffer_skipped INTEGER,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_segments_session_created ON segments(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ensure reports whether the store is usable.
func (s *Store) Ensure() error {
	if s.cfg.RetentionMode == "ephemeral" {
		return nil
	}
	if s.db == nil {
		return errors.New("segment log not open")
	}
	return nil
}

// Append writes one outcome record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segments(session_id, sequence, state, languages_processed, languages_failed,
		 cache_hits, cache_misses, translate_ms, synthesize_ms, broadcast_ms,
		 delivered, pruned, buffer_skipped, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Sequence, rec.State,
		strings.Join(rec.LanguagesProcessed, ","), strings.Join(rec.LanguagesFailed, ","),
		rec.CacheHits, rec.CacheMisses, rec.TranslateMS, rec.SynthesizeMS, rec.BroadcastMS,
		rec.Delivered, rec.Pruned, rec.BufferSkipped, rec.CreatedAt)
	return err
}

// ListSession returns the most recent records for a session, oldest first.
func (s *Store) ListSession(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, sequence, state, languages_processed, languages_failed,
		 cache_hits, cache_misses, translate_ms, synthesize_ms, broadcast_ms,
		 delivered, pruned, buffer_skipped, created_at
		 FROM segments WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var processed, failed string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Sequence, &rec.State, &processed, &failed,
			&rec.CacheHits, &rec.CacheMisses, &rec.TranslateMS, &rec.SynthesizeMS, &rec.BroadcastMS,
			&rec.Delivered, &rec.Pruned, &rec.BufferSkipped, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.LanguagesProcessed = splitLanguages(processed)
		rec.LanguagesFailed = splitLanguages(failed)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func splitLanguages(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// Prune enforces the retention policy: drop records older than the
// configured day count and cap the number of distinct sessions retained.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE created_at < ?`, cutoff); err != nil {
			return fmt.Errorf("prune by age: %w", err)
		}
	}

	if s.cfg.MaxSessions > 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM segments WHERE session_id NOT IN (
			   SELECT session_id FROM segments GROUP BY session_id
			   ORDER BY MAX(created_at) DESC LIMIT ?)`,
			s.cfg.MaxSessions)
		if err != nil {
			return fmt.Errorf("prune by session count: %w", err)
		}
	}
	return nil
}

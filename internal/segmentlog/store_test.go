package segmentlog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.SegmentLogConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := s.Append(context.Background(), Record{SessionID: "s1", State: "done"}); err != nil {
		t.Fatalf("ephemeral append should be a no-op: %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.SegmentLogConfig{Path: filepath.Join(tmp, "segments.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open segment log: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	rec := Record{
		SessionID:          "s1",
		Sequence:           42,
		State:              "partial",
		LanguagesProcessed: []string{"es"},
		LanguagesFailed:    []string{"fr"},
		CacheHits:          1,
		CacheMisses:        1,
		TranslateMS:        120,
		SynthesizeMS:       300,
		BroadcastMS:        15,
		Delivered:          3,
		Pruned:             1,
	}
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := s.ListSession(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.Sequence != 42 || got.State != "partial" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.LanguagesProcessed) != 1 || got.LanguagesProcessed[0] != "es" {
		t.Fatalf("unexpected processed languages: %v", got.LanguagesProcessed)
	}
	if len(got.LanguagesFailed) != 1 || got.LanguagesFailed[0] != "fr" {
		t.Fatalf("unexpected failed languages: %v", got.LanguagesFailed)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.SegmentLogConfig{
		Path:          filepath.Join(tmp, "segments.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxSessions:   1,
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open segment log: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Record{SessionID: "old-session", State: "done"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Record{SessionID: "new-session", State: "done"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	old, err := s.ListSession(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list old: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected old session pruned, got %d records", len(old))
	}
	recent, err := s.ListSession(context.Background(), "new-session", 10)
	if err != nil {
		t.Fatalf("list new: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected new session retained, got %d records", len(recent))
	}
}

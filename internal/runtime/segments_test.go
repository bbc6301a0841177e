package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/babelcast-labs/babelcast-core/internal/config"
	"github.com/babelcast-labs/babelcast-core/internal/segmentlog"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newStore(t *testing.T) *segmentlog.Store {
	t.Helper()
	cfg := config.SegmentLogConfig{
		Path:          filepath.Join(t.TempDir(), "segments.db"),
		RetentionMode: "session",
		RetentionDays: 30,
		MaxSessions:   100,
	}
	store, err := segmentlog.Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open segment log: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSegmentLogHandlerReturnsSessionRecords(t *testing.T) {
	store := newStore(t)
	for seq := int64(1); seq <= 3; seq++ {
		rec := segmentlog.Record{
			SessionID:          "s1",
			Sequence:           seq,
			State:              "done",
			LanguagesProcessed: []string{"es", "fr"},
			Delivered:          2,
		}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	handler := segmentLogHandler(store, newLogger())
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/sessions/s1/segments", nil))

	if rr.Code != 200 {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	var records []segmentlog.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Sequence != 1 || records[2].Sequence != 3 {
		t.Fatalf("records not in chronological order: %+v", records)
	}
}

func TestSegmentLogHandlerUnknownSessionIsEmptyList(t *testing.T) {
	store := newStore(t)

	handler := segmentLogHandler(store, newLogger())
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/sessions/nope/segments", nil))

	if rr.Code != 200 {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var records []segmentlog.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty list, got %d records", len(records))
	}
}

func TestSegmentLogHandlerRejectsBadPaths(t *testing.T) {
	store := newStore(t)
	handler := segmentLogHandler(store, newLogger())

	for _, path := range []string{"/sessions/", "/sessions/s1", "/sessions/s1/other", "/sessions/a/b/segments"} {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != 404 {
			t.Fatalf("path %q: expected 404, got %d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest("GET", "/sessions/s1/segments?limit=zero", nil))
	if rr.Code != 400 {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}
}

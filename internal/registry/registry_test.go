package registry

import (
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/buffer"
	"github.com/babelcast-labs/babelcast-core/internal/config"
	"github.com/babelcast-labs/babelcast-core/internal/counter"
	"github.com/babelcast-labs/babelcast-core/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRegistry() (*Registry, *counter.Store, *buffer.Manager) {
	log := newLogger()
	counts := counter.NewStore(log)
	buffers := buffer.NewManager(10, log)
	cfg := config.RegistryConfig{HeartbeatTimeout: 15000, SweepInterval: 5000}
	return New(cfg, counts, buffers, log), counts, buffers
}

func join(sessionID, subscriberID, language string) protocol.SubscriberControl {
	return protocol.SubscriberControl{
		Kind:         protocol.ControlJoin,
		SessionID:    sessionID,
		SubscriberID: subscriberID,
		Language:     language,
		Timestamp:    time.Now().UTC(),
	}
}

func TestJoinIncrementsCounter(t *testing.T) {
	r, counts, _ := newRegistry()

	r.Apply(join("s1", "sub-1", "es"))
	r.Apply(join("s1", "sub-2", "fr"))

	if got := counts.Get("s1"); got != 2 {
		t.Fatalf("expected count 2, got %d", got)
	}
}

func TestRejoinDoesNotDoubleCount(t *testing.T) {
	r, counts, _ := newRegistry()

	r.Apply(join("s1", "sub-1", "es"))
	r.Apply(join("s1", "sub-1", "fr"))

	if got := counts.Get("s1"); got != 1 {
		t.Fatalf("expected count 1 after rejoin, got %d", got)
	}
	langs := r.Languages("s1")
	if len(langs) != 1 || langs[0] != "fr" {
		t.Fatalf("expected language updated to fr, got %v", langs)
	}
}

func TestLeaveDecrementsAndClearsBuffer(t *testing.T) {
	r, counts, buffers := newRegistry()

	r.Apply(join("s1", "sub-1", "es"))
	buffers.MaybeAccept("sub-1", 10)

	r.Apply(protocol.SubscriberControl{Kind: protocol.ControlLeave, SessionID: "s1", SubscriberID: "sub-1"})

	if got := counts.Get("s1"); got != 0 {
		t.Fatalf("expected count 0 after leave, got %d", got)
	}
	if got := buffers.Outstanding("sub-1"); got != 0 {
		t.Fatalf("expected buffer cleared, got %f", got)
	}
}

func TestLeaveUnknownSubscriberIsNoop(t *testing.T) {
	r, counts, _ := newRegistry()
	r.Apply(join("s1", "sub-1", "es"))
	r.Apply(protocol.SubscriberControl{Kind: protocol.ControlLeave, SessionID: "s1", SubscriberID: "ghost"})
	if got := counts.Get("s1"); got != 1 {
		t.Fatalf("expected count unchanged, got %d", got)
	}
}

func TestLanguagesDistinct(t *testing.T) {
	r, _, _ := newRegistry()

	r.Apply(join("s1", "sub-1", "es"))
	r.Apply(join("s1", "sub-2", "es"))
	r.Apply(join("s1", "sub-3", "fr"))

	langs := r.Languages("s1")
	sort.Strings(langs)
	if len(langs) != 2 || langs[0] != "es" || langs[1] != "fr" {
		t.Fatalf("expected [es fr], got %v", langs)
	}
}

func TestSubscribersFilteredByLanguage(t *testing.T) {
	r, _, _ := newRegistry()

	r.Apply(join("s1", "sub-1", "es"))
	r.Apply(join("s1", "sub-2", "fr"))

	es := r.Subscribers("s1", "es")
	if len(es) != 1 || es[0].ID != "sub-1" {
		t.Fatalf("unexpected es subscribers: %v", es)
	}
	if got := r.Subscribers("s1", "de"); len(got) != 0 {
		t.Fatalf("expected no de subscribers, got %v", got)
	}
}

func TestJoinAssignsIDWhenMissing(t *testing.T) {
	r, _, _ := newRegistry()
	r.Apply(join("s1", "", "es"))
	subs := r.Subscribers("s1", "es")
	if len(subs) != 1 || subs[0].ID == "" {
		t.Fatalf("expected generated subscriber id, got %v", subs)
	}
}

func TestSweepPrunesStaleSubscribers(t *testing.T) {
	r, counts, _ := newRegistry()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.clock = func() time.Time { return base }
	r.Apply(join("s1", "sub-1", "es"))
	r.Apply(join("s1", "sub-2", "fr"))

	r.clock = func() time.Time { return base.Add(10 * time.Second) }
	r.Apply(protocol.SubscriberControl{Kind: protocol.ControlHeartbeat, SessionID: "s1", SubscriberID: "sub-2"})

	r.clock = func() time.Time { return base.Add(16 * time.Second) }
	r.sweepStale()

	if got := counts.Get("s1"); got != 1 {
		t.Fatalf("expected one subscriber left, got %d", got)
	}
	if got := r.Subscribers("s1", "fr"); len(got) != 1 {
		t.Fatalf("heartbeating subscriber should survive sweep, got %v", got)
	}
}

func TestUnknownControlKindIgnored(t *testing.T) {
	r, counts, _ := newRegistry()
	r.Apply(protocol.SubscriberControl{Kind: "promote", SessionID: "s1", SubscriberID: "sub-1"})
	if got := counts.Get("s1"); got != 0 {
		t.Fatalf("unknown kind must not change state, got %d", got)
	}
}

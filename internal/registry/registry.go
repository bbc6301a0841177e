// Package registry tracks live subscribers per session and per language,
// fed by join/leave/heartbeat control messages on the bus. It is the
// source of truth for the pipeline's language resolution and keeps the
// subscriber counter and buffer manager in step with membership changes.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/buffer"
	"github.com/babelcast-labs/babelcast-core/internal/bus"
	"github.com/babelcast-labs/babelcast-core/internal/config"
	"github.com/babelcast-labs/babelcast-core/internal/counter"
	"github.com/babelcast-labs/babelcast-core/internal/protocol"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Subscriber is one live listener of a session in a specific language.
type Subscriber struct {
	ID        string
	SessionID string
	Language  string
	LastSeen  time.Time
}

type Registry struct {
	cfg     config.RegistryConfig
	log     *slog.Logger
	counts  *counter.Store
	buffers *buffer.Manager
	clock   func() time.Time

	mu       sync.RWMutex
	sessions map[string]map[string]*Subscriber

	sub    *nats.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup

	meter metric.Meter
	gauge metric.Int64ObservableGauge
}

func New(cfg config.RegistryConfig, counts *counter.Store, buffers *buffer.Manager, log *slog.Logger) *Registry {
	r := &Registry{
		cfg:      cfg,
		log:      log.With(slog.String("component", "subscriber-registry")),
		counts:   counts,
		buffers:  buffers,
		clock:    time.Now,
		sessions: make(map[string]map[string]*Subscriber),
		meter:    otel.Meter("github.com/babelcast-labs/babelcast-core/registry"),
	}
	r.initMetrics()
	return r
}

func (r *Registry) initMetrics() {
	gauge, err := r.meter.Int64ObservableGauge("babelcast.registry.subscribers")
	if err != nil {
		r.log.Warn("failed to create subscriber gauge", slog.String("error", err.Error()))
		return
	}
	r.gauge = gauge
	_, err = r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		r.mu.RLock()
		total := 0
		for _, subs := range r.sessions {
			total += len(subs)
		}
		r.mu.RUnlock()
		o.ObserveInt64(r.gauge, int64(total))
		return nil
	}, r.gauge)
	if err != nil {
		r.log.Warn("failed to register subscriber gauge callback", slog.String("error", err.Error()))
	}
}

// Start subscribes to subscriber control messages and begins the stale
// subscriber sweep loop.
func (r *Registry) Start(parent context.Context, busClient *bus.Client) error {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel

	sub, err := busClient.Conn().Subscribe(protocol.SubjectSubscriberControlPrefix+".>", r.handleControl)
	if err != nil {
		cancel()
		return err
	}
	r.sub = sub

	r.wg.Add(1)
	go r.runSweep(ctx)
	return nil
}

func (r *Registry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.sub != nil {
		_ = r.sub.Drain()
	}
	r.wg.Wait()
}

func (r *Registry) Healthy() bool {
	return r.sub != nil
}

func (r *Registry) handleControl(msg *nats.Msg) {
	var ctl protocol.SubscriberControl
	if err := json.Unmarshal(msg.Data, &ctl); err != nil {
		r.log.Warn("failed to decode subscriber control", slog.String("error", err.Error()))
		return
	}
	r.Apply(ctl)
}

// Apply processes one control message. Exported for direct use in tests and
// by local callers that bypass the bus.
func (r *Registry) Apply(ctl protocol.SubscriberControl) {
	if ctl.SessionID == "" {
		r.log.Warn("subscriber control without session id ignored")
		return
	}
	switch ctl.Kind {
	case protocol.ControlJoin:
		r.join(ctl)
	case protocol.ControlLeave:
		r.Remove(ctl.SessionID, ctl.SubscriberID)
	case protocol.ControlHeartbeat:
		r.heartbeat(ctl)
	default:
		r.log.Warn("unknown subscriber control kind", slog.String("kind", ctl.Kind))
	}
}

func (r *Registry) join(ctl protocol.SubscriberControl) {
	id := ctl.SubscriberID
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	subs := r.sessions[ctl.SessionID]
	if subs == nil {
		subs = make(map[string]*Subscriber)
		r.sessions[ctl.SessionID] = subs
	}
	existing, rejoin := subs[id]
	if rejoin {
		existing.Language = ctl.Language
		existing.LastSeen = r.clock()
	} else {
		subs[id] = &Subscriber{
			ID:        id,
			SessionID: ctl.SessionID,
			Language:  ctl.Language,
			LastSeen:  r.clock(),
		}
	}
	r.mu.Unlock()

	if !rejoin {
		r.counts.Increment(ctl.SessionID)
	}
	r.log.Info("subscriber joined",
		slog.String("session_id", ctl.SessionID),
		slog.String("subscriber_id", id),
		slog.String("language", ctl.Language))
}

// Remove drops a subscriber and releases its counter and buffer state.
// Used for explicit leaves and for handles the push layer reported gone.
func (r *Registry) Remove(sessionID, subscriberID string) {
	r.mu.Lock()
	subs := r.sessions[sessionID]
	_, present := subs[subscriberID]
	if present {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	r.mu.Unlock()

	if !present {
		return
	}
	r.counts.Decrement(sessionID)
	r.buffers.Remove(subscriberID)
	r.log.Info("subscriber removed",
		slog.String("session_id", sessionID),
		slog.String("subscriber_id", subscriberID))
}

func (r *Registry) heartbeat(ctl protocol.SubscriberControl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.sessions[ctl.SessionID][ctl.SubscriberID]; ok {
		sub.LastSeen = r.clock()
	}
}

// Languages returns the distinct languages currently requested for a
// session. Recomputed on every call; never cached across segments.
func (r *Registry) Languages(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var languages []string
	for _, sub := range r.sessions[sessionID] {
		if sub.Language == "" || seen[sub.Language] {
			continue
		}
		seen[sub.Language] = true
		languages = append(languages, sub.Language)
	}
	return languages
}

// Subscribers returns the current subscribers of a session requesting the
// given language.
func (r *Registry) Subscribers(sessionID, language string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Subscriber
	for _, sub := range r.sessions[sessionID] {
		if sub.Language == language {
			out = append(out, *sub)
		}
	}
	return out
}

func (r *Registry) runSweep(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Duration(r.cfg.SweepInterval) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepStale()
		}
	}
}

func (r *Registry) sweepStale() {
	timeout := time.Duration(r.cfg.HeartbeatTimeout) * time.Millisecond
	cutoff := r.clock().Add(-timeout)

	type stale struct{ sessionID, subscriberID string }
	var expired []stale

	r.mu.RLock()
	for sessionID, subs := range r.sessions {
		for id, sub := range subs {
			if sub.LastSeen.Before(cutoff) {
				expired = append(expired, stale{sessionID, id})
			}
		}
	}
	r.mu.RUnlock()

	for _, s := range expired {
		r.log.Info("pruning stale subscriber",
			slog.String("session_id", s.sessionID),
			slog.String("subscriber_id", s.subscriberID))
		r.Remove(s.sessionID, s.subscriberID)
	}
}

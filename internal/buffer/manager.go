// Package buffer bounds the amount of sent-but-unacknowledged audio per
// subscriber so a stalled consumer never grows server-side state without
// limit.
package buffer

import (
	"log/slog"
	"sync"
)

// Manager tracks outstanding audio seconds per subscriber against a fixed
// cap. When accepting a chunk would exceed the cap the chunk is refused;
// the caller drops it for that subscriber only.
type Manager struct {
	mu          sync.Mutex
	outstanding map[string]float64
	maxSecs     float64
	log         *slog.Logger
}

func NewManager(maxOutstandingSecs float64, log *slog.Logger) *Manager {
	return &Manager{
		outstanding: make(map[string]float64),
		maxSecs:     maxOutstandingSecs,
		log:         log.With(slog.String("component", "audio-buffer")),
	}
}

// MaybeAccept reserves durationSecs for the subscriber if it fits under the
// cap. Returns false on overflow without reserving anything.
func (m *Manager) MaybeAccept(subscriberID string, durationSecs float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.outstanding[subscriberID]
	if current+durationSecs > m.maxSecs {
		m.log.Debug("buffer overflow, dropping chunk",
			slog.String("subscriber_id", subscriberID),
			slog.Float64("outstanding_secs", current),
			slog.Float64("chunk_secs", durationSecs))
		return false
	}
	m.outstanding[subscriberID] = current + durationSecs
	return true
}

// Acknowledge releases durationSecs previously reserved for the subscriber.
// The outstanding total never goes below zero.
func (m *Manager) Acknowledge(subscriberID string, durationSecs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.outstanding[subscriberID] - durationSecs
	if remaining <= 0 {
		delete(m.outstanding, subscriberID)
		return
	}
	m.outstanding[subscriberID] = remaining
}

// Remove clears all state for a departed subscriber.
func (m *Manager) Remove(subscriberID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outstanding, subscriberID)
}

// Outstanding reports the currently reserved seconds for a subscriber.
func (m *Manager) Outstanding(subscriberID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outstanding[subscriberID]
}

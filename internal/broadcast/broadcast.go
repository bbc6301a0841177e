// Package broadcast fans one language's synthesized audio out to every
// subscriber of that language, with bounded concurrency and per-subscriber
// outcome tracking.
package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"github.com/babelcast-labs/babelcast-core/internal/protocol"
	"github.com/babelcast-labs/babelcast-core/internal/registry"
)

// ErrGone signals a handle the push layer reports as permanently invalid.
// The handler marks it prunable; removal from the registry is the caller's
// responsibility.
var ErrGone = errors.New("subscriber gone")

// Pusher delivers one audio chunk to one subscriber.
type Pusher interface {
	Push(ctx context.Context, sub registry.Subscriber, chunk protocol.AudioChunk) error
}

// Outcome is the per-language result of one broadcast call. Produced once,
// emitted as metrics, then discarded. Failed and Pruned carry subscriber
// IDs so the caller can release per-subscriber state for sends that never
// reached the recipient.
type Outcome struct {
	Language  string
	Attempted int
	Delivered int
	Failed    []string
	Pruned    []string
}

// Handler sends to every subscriber exactly once per call. Sends run on a
// fixed-size worker pool so neither in-flight pushes nor goroutines grow
// with the subscriber count; one failure never aborts the batch and
// nothing is retried here.
type Handler struct {
	pusher      Pusher
	maxInflight int
	log         *slog.Logger
}

func NewHandler(pusher Pusher, maxInflight int, log *slog.Logger) *Handler {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &Handler{
		pusher:      pusher,
		maxInflight: maxInflight,
		log:         log.With(slog.String("component", "broadcast-handler")),
	}
}

type pushResult struct {
	subscriberID string
	err          error
}

// Broadcast delivers chunk to all subscribers. The chunk's SubscriberID is
// filled in per recipient.
func (h *Handler) Broadcast(ctx context.Context, chunk protocol.AudioChunk, subscribers []registry.Subscriber) Outcome {
	outcome := Outcome{Language: chunk.Language, Attempted: len(subscribers)}
	if len(subscribers) == 0 {
		return outcome
	}

	workers := h.maxInflight
	if len(subscribers) < workers {
		workers = len(subscribers)
	}

	jobs := make(chan registry.Subscriber)
	results := make(chan pushResult, len(subscribers))
	for i := 0; i < workers; i++ {
		go func() {
			for sub := range jobs {
				payload := chunk
				payload.SubscriberID = sub.ID
				results <- pushResult{subscriberID: sub.ID, err: h.pusher.Push(ctx, sub, payload)}
			}
		}()
	}
	for _, sub := range subscribers {
		jobs <- sub
	}
	close(jobs)

	for range subscribers {
		r := <-results
		switch {
		case r.err == nil:
			outcome.Delivered++
		case errors.Is(r.err, ErrGone):
			outcome.Pruned = append(outcome.Pruned, r.subscriberID)
			h.log.Info("subscriber handle gone",
				slog.String("session_id", chunk.SessionID),
				slog.String("subscriber_id", r.subscriberID))
		default:
			outcome.Failed = append(outcome.Failed, r.subscriberID)
			h.log.Warn("delivery failed",
				slog.String("session_id", chunk.SessionID),
				slog.String("subscriber_id", r.subscriberID),
				slog.String("language", chunk.Language),
				slog.String("error", r.err.Error()))
		}
	}
	return outcome
}

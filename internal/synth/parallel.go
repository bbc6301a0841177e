package synth

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Parallel runs one synthesis call per language concurrently, each under
// its own timeout. Failure isolation matches the parallel translator: a
// failed language is dropped, siblings are unaffected, no retries.
type Parallel struct {
	synthesizer Synthesizer
	voice       string
	sampleRate  int
	timeout     time.Duration
	log         *slog.Logger
}

func NewParallel(synthesizer Synthesizer, voice string, sampleRate int, timeout time.Duration, log *slog.Logger) *Parallel {
	return &Parallel{
		synthesizer: synthesizer,
		voice:       voice,
		sampleRate:  sampleRate,
		timeout:     timeout,
		log:         log.With(slog.String("component", "parallel-synthesizer")),
	}
}

// Synthesize returns one Result per entry in markups. An empty input map
// returns an empty map and makes zero external calls.
func (p *Parallel) Synthesize(ctx context.Context, sessionID string, markups map[string]string) map[string]Result {
	results := make(map[string]Result, len(markups))
	if len(markups) == 0 {
		return results
	}

	resultCh := make(chan Result, len(markups))
	for lang, markup := range markups {
		go func(lang, markup string) {
			resultCh <- p.synthesizeOne(ctx, sessionID, lang, markup)
		}(lang, markup)
	}
	for range markups {
		r := <-resultCh
		results[r.Language] = r
	}
	return results
}

func (p *Parallel) synthesizeOne(ctx context.Context, sessionID, lang, markup string) Result {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	audio, err := p.synthesizer.Synthesize(callCtx, Request{
		SessionID:  sessionID,
		Language:   lang,
		Markup:     markup,
		Voice:      p.voice,
		SampleRate: p.sampleRate,
	})
	if err != nil {
		reason := ReasonServiceError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		p.log.Warn("synthesis failed",
			slog.String("session_id", sessionID),
			slog.String("language", lang),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return Result{Language: lang, Reason: reason}
	}
	return Result{Language: lang, Audio: audio, Success: true}
}

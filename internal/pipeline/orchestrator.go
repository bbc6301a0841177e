// Package pipeline sequences one transcript segment through gating,
// language resolution, translation, prosody markup, synthesis, buffer
// admission, and broadcast. Each segment is one independent run; runs for
// consecutive segments may overlap and share only the cache, the
// subscriber counter, and the buffer manager, which synchronize
// internally.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/broadcast"
	"github.com/babelcast-labs/babelcast-core/internal/buffer"
	"github.com/babelcast-labs/babelcast-core/internal/counter"
	"github.com/babelcast-labs/babelcast-core/internal/prosody"
	"github.com/babelcast-labs/babelcast-core/internal/protocol"
	"github.com/babelcast-labs/babelcast-core/internal/registry"
	"github.com/babelcast-labs/babelcast-core/internal/synth"
	"github.com/babelcast-labs/babelcast-core/internal/translate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Terminal states of one orchestration run.
const (
	StateDone    = "done"
	StatePartial = "partial"
	StateSkipped = "skipped"
)

// Resolver supplies the current subscriber view for a session.
type Resolver interface {
	Languages(sessionID string) []string
	Subscribers(sessionID, language string) []registry.Subscriber
	Remove(sessionID, subscriberID string)
}

// Translator is the parallel translation stage.
type Translator interface {
	Translate(ctx context.Context, seg protocol.TranscriptSegment, targets []string) map[string]translate.Result
}

// Synthesizer is the parallel synthesis stage.
type Synthesizer interface {
	Synthesize(ctx context.Context, sessionID string, markups map[string]string) map[string]synth.Result
}

// Broadcaster fans one language's audio out to its subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, chunk protocol.AudioChunk, subscribers []registry.Subscriber) broadcast.Outcome
}

// Metrics is the record emitted once per run.
type Metrics struct {
	SessionID          string
	Sequence           int64
	State              string
	LanguagesProcessed []string
	LanguagesFailed    []string
	CacheHits          int
	CacheMisses        int
	BufferSkipped      int
	Delivered          int
	Pruned             int
	Failed             int
	TranslateDuration  time.Duration
	SynthesizeDuration time.Duration
	BroadcastDuration  time.Duration
}

// Orchestrator owns no mutable per-segment state; it is safe to run
// ProcessSegment concurrently from any number of goroutines.
type Orchestrator struct {
	counts      *counter.Store
	resolver    Resolver
	translator  Translator
	synthesizer Synthesizer
	broadcaster Broadcaster
	buffers     *buffer.Manager
	log         *slog.Logger
	tracer      trace.Tracer
	metrics     *instruments
}

func NewOrchestrator(
	counts *counter.Store,
	resolver Resolver,
	translator Translator,
	synthesizer Synthesizer,
	broadcaster Broadcaster,
	buffers *buffer.Manager,
	log *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		counts:      counts,
		resolver:    resolver,
		translator:  translator,
		synthesizer: synthesizer,
		broadcaster: broadcaster,
		buffers:     buffers,
		log:         log.With(slog.String("component", "pipeline")),
		tracer:      otel.Tracer("github.com/babelcast-labs/babelcast-core/pipeline"),
	}
	o.metrics = newInstruments(o.log)
	return o
}

// ProcessSegment runs one segment through the pipeline and returns the
// emitted metrics record. It never returns an error: every external
// failure is converted to a per-language or per-subscriber outcome.
func (o *Orchestrator) ProcessSegment(ctx context.Context, seg protocol.TranscriptSegment) Metrics {
	ctx, span := o.tracer.Start(ctx, "pipeline.process_segment",
		trace.WithAttributes(
			attribute.String("session.id", seg.SessionID),
			attribute.Int64("segment.sequence", seg.Sequence),
		))
	defer span.End()

	m := Metrics{SessionID: seg.SessionID, Sequence: seg.Sequence}

	// Gate: a session nobody listens to does no work at all.
	if o.counts.Get(seg.SessionID) == 0 {
		m.State = StateSkipped
		o.emit(ctx, m)
		return m
	}

	languages := o.resolver.Languages(seg.SessionID)
	if len(languages) == 0 {
		m.State = StateSkipped
		o.emit(ctx, m)
		return m
	}

	translateStart := time.Now()
	translated := o.translator.Translate(ctx, seg, languages)
	m.TranslateDuration = time.Since(translateStart)

	markups := make(map[string]string, len(translated))
	for lang, result := range translated {
		if result.CacheHit {
			m.CacheHits++
		} else {
			m.CacheMisses++
		}
		if !result.Success {
			m.LanguagesFailed = append(m.LanguagesFailed, lang)
			continue
		}
		markups[lang] = prosody.Generate(result.Text, seg.Dynamics)
	}

	synthStart := time.Now()
	synthesized := o.synthesizer.Synthesize(ctx, seg.SessionID, markups)
	m.SynthesizeDuration = time.Since(synthStart)

	audioByLang := make(map[string]synth.Audio, len(synthesized))
	for lang, result := range synthesized {
		if !result.Success {
			m.LanguagesFailed = append(m.LanguagesFailed, lang)
			continue
		}
		audioByLang[lang] = result.Audio
	}

	broadcastStart := time.Now()
	outcomes := o.broadcastAll(ctx, seg, audioByLang, &m)
	m.BroadcastDuration = time.Since(broadcastStart)

	for _, outcome := range outcomes {
		m.LanguagesProcessed = append(m.LanguagesProcessed, outcome.Language)
		m.Delivered += outcome.Delivered
		m.Failed += len(outcome.Failed)
		m.Pruned += len(outcome.Pruned)

		// A failed or gone subscriber never received the chunk, so no ack
		// will arrive; release the reservation made at the buffer check or
		// the subscriber would drift over the cap and be skipped forever.
		duration := audioByLang[outcome.Language].DurationSecs
		for _, subscriberID := range outcome.Failed {
			o.buffers.Acknowledge(subscriberID, duration)
		}
		for _, subscriberID := range outcome.Pruned {
			o.buffers.Acknowledge(subscriberID, duration)
			o.resolver.Remove(seg.SessionID, subscriberID)
		}
	}

	sort.Strings(m.LanguagesProcessed)
	sort.Strings(m.LanguagesFailed)
	if len(m.LanguagesFailed) == 0 {
		m.State = StateDone
	} else {
		m.State = StatePartial
	}
	o.emit(ctx, m)
	return m
}

// broadcastAll runs the buffer check and broadcast for every surviving
// language; languages proceed concurrently with each other.
func (o *Orchestrator) broadcastAll(ctx context.Context, seg protocol.TranscriptSegment, audioByLang map[string]synth.Audio, m *Metrics) []broadcast.Outcome {
	if len(audioByLang) == 0 {
		return nil
	}

	type langOutcome struct {
		outcome broadcast.Outcome
		skipped int
	}
	results := make(chan langOutcome, len(audioByLang))

	for lang, audio := range audioByLang {
		subscribers := o.resolver.Subscribers(seg.SessionID, lang)

		// Buffer check: subscribers without room miss this segment only.
		eligible := subscribers[:0:0]
		skipped := 0
		for _, sub := range subscribers {
			if o.buffers.MaybeAccept(sub.ID, audio.DurationSecs) {
				eligible = append(eligible, sub)
			} else {
				skipped++
			}
		}

		chunk := protocol.AudioChunk{
			SessionID:    seg.SessionID,
			Language:     lang,
			Sequence:     seg.Sequence,
			SampleRate:   audio.SampleRate,
			PCM:          audio.PCM,
			DurationSecs: audio.DurationSecs,
		}
		go func(chunk protocol.AudioChunk, eligible []registry.Subscriber, skipped int) {
			results <- langOutcome{outcome: o.broadcaster.Broadcast(ctx, chunk, eligible), skipped: skipped}
		}(chunk, eligible, skipped)
	}

	outcomes := make([]broadcast.Outcome, 0, len(audioByLang))
	for range audioByLang {
		r := <-results
		m.BufferSkipped += r.skipped
		outcomes = append(outcomes, r.outcome)
	}
	return outcomes
}

func (o *Orchestrator) emit(ctx context.Context, m Metrics) {
	o.metrics.record(ctx, m)
	o.log.Info("segment processed",
		slog.String("session_id", m.SessionID),
		slog.Int64("sequence", m.Sequence),
		slog.String("state", m.State),
		slog.Any("languages_processed", m.LanguagesProcessed),
		slog.Any("languages_failed", m.LanguagesFailed),
		slog.Int("delivered", m.Delivered),
		slog.Int("pruned", m.Pruned),
		slog.Int("buffer_skipped", m.BufferSkipped),
		slog.Duration("translate", m.TranslateDuration),
		slog.Duration("synthesize", m.SynthesizeDuration),
		slog.Duration("broadcast", m.BroadcastDuration))
}

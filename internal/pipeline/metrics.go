package pipeline

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	segments      metric.Int64Counter
	languagesOK   metric.Int64Counter
	languagesFail metric.Int64Counter
	delivered     metric.Int64Counter
	pruned        metric.Int64Counter
	bufferSkipped metric.Int64Counter
	stageLatency  metric.Float64Histogram
}

func newInstruments(log *slog.Logger) *instruments {
	meter := otel.Meter("github.com/babelcast-labs/babelcast-core/pipeline")
	in := &instruments{}
	var err error
	if in.segments, err = meter.Int64Counter("babelcast.pipeline.segments"); err != nil {
		log.Warn("failed to create segments counter", slog.String("error", err.Error()))
	}
	if in.languagesOK, err = meter.Int64Counter("babelcast.pipeline.languages_processed"); err != nil {
		log.Warn("failed to create languages counter", slog.String("error", err.Error()))
	}
	if in.languagesFail, err = meter.Int64Counter("babelcast.pipeline.languages_failed"); err != nil {
		log.Warn("failed to create failed languages counter", slog.String("error", err.Error()))
	}
	if in.delivered, err = meter.Int64Counter("babelcast.pipeline.delivered"); err != nil {
		log.Warn("failed to create delivered counter", slog.String("error", err.Error()))
	}
	if in.pruned, err = meter.Int64Counter("babelcast.pipeline.pruned"); err != nil {
		log.Warn("failed to create pruned counter", slog.String("error", err.Error()))
	}
	if in.bufferSkipped, err = meter.Int64Counter("babelcast.pipeline.buffer_skipped"); err != nil {
		log.Warn("failed to create buffer skipped counter", slog.String("error", err.Error()))
	}
	if in.stageLatency, err = meter.Float64Histogram("babelcast.pipeline.stage_seconds"); err != nil {
		log.Warn("failed to create stage latency histogram", slog.String("error", err.Error()))
	}
	return in
}

func (in *instruments) record(ctx context.Context, m Metrics) {
	if in.segments != nil {
		in.segments.Add(ctx, 1, metric.WithAttributes(attribute.String("state", m.State)))
	}
	if in.languagesOK != nil {
		in.languagesOK.Add(ctx, int64(len(m.LanguagesProcessed)))
	}
	if in.languagesFail != nil {
		in.languagesFail.Add(ctx, int64(len(m.LanguagesFailed)))
	}
	if in.delivered != nil {
		in.delivered.Add(ctx, int64(m.Delivered))
	}
	if in.pruned != nil {
		in.pruned.Add(ctx, int64(m.Pruned))
	}
	if in.bufferSkipped != nil {
		in.bufferSkipped.Add(ctx, int64(m.BufferSkipped))
	}
	if in.stageLatency != nil {
		in.stageLatency.Record(ctx, m.TranslateDuration.Seconds(), metric.WithAttributes(attribute.String("stage", "translate")))
		in.stageLatency.Record(ctx, m.SynthesizeDuration.Seconds(), metric.WithAttributes(attribute.String("stage", "synthesize")))
		in.stageLatency.Record(ctx, m.BroadcastDuration.Seconds(), metric.WithAttributes(attribute.String("stage", "broadcast")))
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/babelcast-labs/babelcast-core/internal/buffer"
	"github.com/babelcast-labs/babelcast-core/internal/bus"
	"github.com/babelcast-labs/babelcast-core/internal/protocol"
	"github.com/babelcast-labs/babelcast-core/internal/segmentlog"
	"github.com/nats-io/nats.go"
)

// Service connects the orchestrator to the bus: finalized transcript
// segments in, audio acknowledgements in, outcome records out. Segments
// are processed in their own goroutines; consecutive segments of one
// session are deliberately not serialized.
type Service struct {
	bus     *bus.Client
	orch    *Orchestrator
	buffers *buffer.Manager
	seglog  *segmentlog.Store
	logger  *slog.Logger

	subSegments *nats.Subscription
	subAcks     *nats.Subscription
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewService(parent context.Context, busClient *bus.Client, orch *Orchestrator, buffers *buffer.Manager, seglog *segmentlog.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:     busClient,
		orch:    orch,
		buffers: buffers,
		seglog:  seglog,
		logger:  log.With(slog.String("component", "pipeline-service")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSegmentFinal, s.handleSegment)
	if err != nil {
		return err
	}
	s.subSegments = sub

	subAcks, err := s.bus.Conn().Subscribe(protocol.SubjectAudioAckPrefix+".>", s.handleAck)
	if err != nil {
		_ = s.subSegments.Drain()
		return err
	}
	s.subAcks = subAcks
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.subSegments != nil {
		_ = s.subSegments.Drain()
	}
	if s.subAcks != nil {
		_ = s.subAcks.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.subSegments != nil && s.subAcks != nil
}

func (s *Service) handleSegment(msg *nats.Msg) {
	var seg protocol.TranscriptSegment
	if err := json.Unmarshal(msg.Data, &seg); err != nil {
		s.logger.Warn("failed to decode transcript segment", slog.String("error", err.Error()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		metrics := s.orch.ProcessSegment(s.ctx, seg)
		s.appendRecord(metrics)
	}()
}

func (s *Service) handleAck(msg *nats.Msg) {
	var ack protocol.AudioAck
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		s.logger.Warn("failed to decode audio ack", slog.String("error", err.Error()))
		return
	}
	if ack.SubscriberID == "" || ack.DurationSecs <= 0 {
		return
	}
	s.buffers.Acknowledge(ack.SubscriberID, ack.DurationSecs)
}

func (s *Service) appendRecord(m Metrics) {
	if s.seglog == nil {
		return
	}
	rec := segmentlog.Record{
		SessionID:          m.SessionID,
		Sequence:           m.Sequence,
		State:              m.State,
		LanguagesProcessed: m.LanguagesProcessed,
		LanguagesFailed:    m.LanguagesFailed,
		CacheHits:          m.CacheHits,
		CacheMisses:        m.CacheMisses,
		TranslateMS:        m.TranslateDuration.Milliseconds(),
		SynthesizeMS:       m.SynthesizeDuration.Milliseconds(),
		BroadcastMS:        m.BroadcastDuration.Milliseconds(),
		Delivered:          m.Delivered,
		Pruned:             m.Pruned,
		BufferSkipped:      m.BufferSkipped,
	}
	if err := s.seglog.Append(s.ctx, rec); err != nil {
		s.logger.Warn("failed to append segment record", slog.String("error", err.Error()))
	}
}

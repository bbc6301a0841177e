package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/broadcast"
	"github.com/babelcast-labs/babelcast-core/internal/buffer"
	"github.com/babelcast-labs/babelcast-core/internal/bus"
	"github.com/babelcast-labs/babelcast-core/internal/cache"
	"github.com/babelcast-labs/babelcast-core/internal/config"
	"github.com/babelcast-labs/babelcast-core/internal/counter"
	"github.com/babelcast-labs/babelcast-core/internal/natsserver"
	"github.com/babelcast-labs/babelcast-core/internal/pipeline"
	"github.com/babelcast-labs/babelcast-core/internal/registry"
	"github.com/babelcast-labs/babelcast-core/internal/segmentlog"
	"github.com/babelcast-labs/babelcast-core/internal/synth"
	"github.com/babelcast-labs/babelcast-core/internal/translate"
)

// Runtime wires the translation pipeline node together: telemetry, bus,
// subscriber registry, pipeline service, and the health endpoints.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	seglog      *segmentlog.Store
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	seglog, err := segmentlog.Open(ctx, r.cfg.SegmentLog, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open segment log: %w", err)
	}
	defer seglog.Close()
	r.seglog = seglog

	translationCache, err := cache.New(r.cfg.Cache.Capacity, time.Duration(r.cfg.Cache.TTLSeconds)*time.Second, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create translation cache: %w", err)
	}
	counts := counter.NewStore(r.logger)
	buffers := buffer.NewManager(r.cfg.Buffer.MaxOutstandingSecs, r.logger)

	subscriberRegistry := registry.New(r.cfg.Registry, counts, buffers, r.logger)
	if err := subscriberRegistry.Start(ctx, busClient); err != nil {
		return fmt.Errorf("failed to start subscriber registry: %w", err)
	}
	defer subscriberRegistry.Close()

	translator, err := translate.FromConfig(r.cfg.Translation)
	if err != nil {
		return fmt.Errorf("failed to build translator: %w", err)
	}
	synthesizer, err := synth.FromConfig(r.cfg.Synthesis)
	if err != nil {
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}

	orchestrator := pipeline.NewOrchestrator(
		counts,
		subscriberRegistry,
		translate.NewParallel(translator, translationCache, time.Duration(r.cfg.Translation.TimeoutMS)*time.Millisecond, r.logger),
		synth.NewParallel(synthesizer, r.cfg.Synthesis.Voice, r.cfg.Synthesis.SampleRate, time.Duration(r.cfg.Synthesis.TimeoutMS)*time.Millisecond, r.logger),
		broadcast.NewHandler(broadcast.NewNATSPusher(busClient), r.cfg.Broadcast.MaxInflight, r.logger),
		buffers,
		r.logger,
	)

	pipelineService := pipeline.NewService(ctx, busClient, orchestrator, buffers, seglog, r.logger)
	if err := pipelineService.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline service: %w", err)
	}
	defer pipelineService.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.Handle("/sessions/", segmentLogHandler(seglog, r.logger))

	var metricsServer *http.Server
	if metricHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricHandler)
		metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		r.logger.Info("metrics endpoint listening", slog.String("addr", r.cfg.Telemetry.PrometheusBind))
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (r.seglog == nil || r.seglog.Ensure() == nil) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

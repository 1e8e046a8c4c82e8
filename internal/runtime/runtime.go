// Package runtime wires the presentation daemon: bus, speech and script
// services, the session manager and its HTTP API.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/eventstore"
	"github.com/loqalabs/loqa-present/internal/llm"
	"github.com/loqalabs/loqa-present/internal/natsserver"
	"github.com/loqalabs/loqa-present/internal/script"
	"github.com/loqalabs/loqa-present/internal/session"
	"github.com/loqalabs/loqa-present/internal/tts"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup

	embedded  *natsserver.EmbeddedServer
	bus       *bus.Client
	store     *eventstore.Store
	ttsSvc    *tts.Service
	scriptSvc *script.Service
	synth     tts.Synthesizer
	generator *script.Generator
	extractor *script.Extractor
	sessions  *session.Manager
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

	tel, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	tel.install()
	r.tracerClose = tel.Shutdown
	metricsHandler := tel.handler

	if err := r.startServices(ctx); err != nil {
		r.stopServices(context.Background())
		return err
	}

	router := r.routes(metricsHandler)
	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	if bind := r.cfg.Telemetry.PrometheusBind; bind != "" && metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{Addr: bind, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		r.serve(r.metricsServer, "metrics")
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.stopServices(shutdownCtx)

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("server failed", slog.String("server", name), slog.String("error", err.Error()))
		}
	}()
}

func (r *Runtime) startServices(ctx context.Context) error {
	var err error
	cfg := r.cfg

	if cfg.Bus.Enabled {
		r.embedded, err = natsserver.Start(cfg.Bus, r.logger)
		if err != nil {
			return err
		}
		busCfg := cfg.Bus
		if r.embedded != nil {
			busCfg.Servers = []string{r.embedded.ClientURL()}
		}
		r.bus, err = bus.Connect(ctx, busCfg, cfg.RuntimeName, r.logger.With(slog.String("component", "bus")))
		if err != nil {
			return err
		}
	}

	r.store, err = eventstore.Open(ctx, cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}

	r.synth, err = tts.New(cfg.TTS)
	if err != nil {
		return err
	}
	if cfg.TTS.Enabled && r.bus != nil {
		r.ttsSvc = tts.NewService(ctx, cfg.TTS, r.bus, r.synth, r.logger)
		if err := r.ttsSvc.Start(); err != nil {
			return fmt.Errorf("start tts service: %w", err)
		}
	}

	model, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}
	r.generator = script.NewGenerator(model, cfg.Script, cfg.LLM, r.logger)
	r.extractor, err = script.NewExtractor(cfg.Script.PDFCommand, cfg.Script.MaxInputBytes)
	if err != nil {
		return err
	}
	if cfg.Script.Enabled && r.bus != nil {
		r.scriptSvc = script.NewService(ctx, cfg.Script, r.bus, r.generator, r.extractor, r.logger)
		if err := r.scriptSvc.Start(); err != nil {
			return fmt.Errorf("start script service: %w", err)
		}
	}

	narrators, err := NarratorFactory(cfg, r.bus, r.synth, r.logger)
	if err != nil {
		return err
	}
	r.sessions, err = session.NewManager(cfg.Player, session.Deps{
		Bus:       r.bus,
		Store:     r.store,
		Narrators: narrators,
		Logger:    r.logger,
	})
	return err
}

func (r *Runtime) stopServices(ctx context.Context) {
	if r.sessions != nil {
		r.sessions.Close(ctx)
	}
	if r.scriptSvc != nil {
		r.scriptSvc.Close()
	}
	if r.ttsSvc != nil {
		r.ttsSvc.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("event store close error", slog.String("error", err.Error()))
		}
	}
	if r.bus != nil {
		r.bus.Close()
	}
	r.embedded.Shutdown()
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.servicesHealthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) servicesHealthy() bool {
	if r.cfg.Bus.Enabled && !r.bus.Healthy() {
		return false
	}
	if r.ttsSvc != nil && !r.ttsSvc.Healthy() {
		return false
	}
	if r.scriptSvc != nil && !r.scriptSvc.Healthy() {
		return false
	}
	return true
}

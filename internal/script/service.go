package script

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/protocol"
	"github.com/loqalabs/loqa-present/internal/slide"
	"github.com/nats-io/nats.go"
)

// Service answers script.request on the bus.
type Service struct {
	cfg       config.ScriptConfig
	bus       *bus.Client
	generator *Generator
	extractor *Extractor
	sub       *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

func NewService(parent context.Context, cfg config.ScriptConfig, busClient *bus.Client, generator *Generator, extractor *Extractor, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:       cfg,
		bus:       busClient,
		generator: generator,
		extractor: extractor,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("component", "script-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := bus.Subscribe(s.bus, protocol.SubjectScriptRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

func (s *Service) handleRequest(req protocol.ScriptRequest, msg *nats.Msg) {
	if msg.Reply == "" {
		s.logger.Warn("script request without reply subject", slog.String("request_id", req.RequestID))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reply := protocol.ScriptReply{RequestID: req.RequestID}
		slides, err := s.generate(req.Content)
		if err != nil {
			reply.Error = err.Error()
			s.logger.Warn("script request failed", slog.String("request_id", req.RequestID), slog.String("error", err.Error()))
		} else {
			reply.Slides = slides
		}
		if err := s.bus.PublishReply(msg, reply); err != nil {
			s.logger.Warn("failed to reply to script request", slog.String("error", err.Error()))
		}
	}()
}

func (s *Service) generate(content string) ([]slide.Slide, error) {
	text, err := s.extractor.Text(content)
	if err != nil {
		return nil, err
	}
	return s.generator.Generate(s.ctx, text)
}

// Request asks a script service on the bus for a script.
func Request(ctx context.Context, client *bus.Client, requestID, content string) ([]slide.Slide, error) {
	req := protocol.ScriptRequest{RequestID: requestID, Content: content, Timestamp: time.Now().UTC()}
	var reply protocol.ScriptReply
	if err := client.Request(ctx, protocol.SubjectScriptRequest, req, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("script service: %s", reply.Error)
	}
	return reply.Slides, nil
}

package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service answers tts.request on the bus, streaming audio on tts.audio and
// a status on tts.done for every utterance.
type Service struct {
	cfg    config.TTSConfig
	bus    *bus.Client
	synth  Synthesizer
	subs   []*nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewService(parent context.Context, cfg config.TTSConfig, busClient *bus.Client, synth Synthesizer, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		synth:    synth,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "tts-service")),
		inflight: make(map[string]context.CancelFunc),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	reqSub, err := bus.Subscribe(s.bus, protocol.SubjectTTSRequest, func(req protocol.TTSRequest, _ *nats.Msg) {
		s.handleRequest(req)
	})
	if err != nil {
		return err
	}
	cancelSub, err := bus.Subscribe(s.bus, protocol.SubjectTTSCancel, func(msg protocol.TTSCancel, _ *nats.Msg) {
		s.handleCancel(msg)
	})
	if err != nil {
		_ = reqSub.Unsubscribe()
		return err
	}
	s.subs = []*nats.Subscription{reqSub, cancelSub}
	s.logger.Info("tts service listening", slog.String("mode", s.cfg.Mode))
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || len(s.subs) > 0 }

func (s *Service) handleCancel(msg protocol.TTSCancel) {
	s.mu.Lock()
	cancel, ok := s.inflight[msg.UtteranceID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Service) handleRequest(req protocol.TTSRequest) {
	ctx, cancel := context.WithTimeout(s.ctx, 45*time.Second)
	s.mu.Lock()
	s.inflight[req.UtteranceID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, req.UtteranceID)
			s.mu.Unlock()
			cancel()
		}()

		err := s.synthesize(ctx, req)
		status := protocol.TTSStatus{
			SessionID:   req.SessionID,
			UtteranceID: req.UtteranceID,
			Target:      req.Target,
			Completed:   err == nil,
			Timestamp:   time.Now().UTC(),
		}
		if err != nil {
			status.Error = err.Error()
			if ctx.Err() == nil {
				s.logger.Warn("tts synthesis error", slog.String("utterance_id", req.UtteranceID), slogError(err))
			}
		}
		if err := s.bus.Publish(protocol.SubjectTTSDone, status); err != nil {
			s.logger.Warn("failed to publish tts status", slogError(err))
		}
	}()
}

func (s *Service) synthesize(ctx context.Context, req protocol.TTSRequest) error {
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}
	chunks, errs := s.synth.Synthesize(ctx, SynthRequest{
		SessionID:   req.SessionID,
		UtteranceID: req.UtteranceID,
		Text:        req.Text,
		Voice:       voice,
	})
	sequence := 0
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			chunk.Sequence = sequence
			sequence++
			s.publishChunk(req, chunk)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Service) publishChunk(req protocol.TTSRequest, chunk SynthChunk) {
	packet := protocol.AudioChunk{
		SessionID:   req.SessionID,
		UtteranceID: req.UtteranceID,
		Target:      req.Target,
		SampleRate:  chunk.SampleRate,
		Channels:    chunk.Channels,
		Sequence:    chunk.Sequence,
		PCM:         chunk.PCM,
		Final:       chunk.Final,
	}
	if err := s.bus.Publish(protocol.SubjectTTSAudio, packet); err != nil {
		s.logger.Warn("failed to publish tts chunk", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

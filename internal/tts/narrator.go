package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Utterance is a finished, fully played piece of narration.
type Utterance struct {
	ID     string
	Text   string
	PCM    []byte
	Format Format
}

// LocalNarrator synthesizes and plays narration in-process.
type LocalNarrator struct {
	synth     Synthesizer
	sink      Sink
	voice     string
	sessionID string
	log       *slog.Logger
	// OnUtterance, when set, receives every utterance that played to the end.
	OnUtterance func(Utterance)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLocalNarrator(synth Synthesizer, sink Sink, voice, sessionID string, log *slog.Logger) *LocalNarrator {
	return &LocalNarrator{
		synth:     synth,
		sink:      sink,
		voice:     voice,
		sessionID: sessionID,
		log:       log.With(slog.String("component", "local-narrator")),
	}
}

// Speak cancels any utterance in flight before starting the new one.
func (n *LocalNarrator) Speak(text string, done func()) {
	ctx, cancel := context.WithCancel(context.Background())
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.cancel = cancel
	n.mu.Unlock()

	id := uuid.NewString()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()

		chunks, errs := n.synth.Synthesize(ctx, SynthRequest{SessionID: n.sessionID, UtteranceID: id, Text: text, Voice: n.voice})
		pcm, format, err := collect(ctx, chunks, errs)
		if err != nil {
			if ctx.Err() == nil {
				n.log.Warn("narration synthesis failed", slog.String("utterance_id", id), slogError(err))
			}
			return
		}
		if err := n.sink.Play(ctx, pcm, format); err != nil {
			if ctx.Err() == nil {
				n.log.Warn("narration playback failed", slog.String("utterance_id", id), slogError(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if n.OnUtterance != nil {
			n.OnUtterance(Utterance{ID: id, Text: text, PCM: pcm, Format: format})
		}
		done()
	}()
}

func (n *LocalNarrator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

// Close cancels narration and waits for its goroutines.
func (n *LocalNarrator) Close() {
	n.Cancel()
	n.wg.Wait()
}

// BusNarrator asks the speech service on the bus to synthesize narration
// and plays the returned audio through its sink.
type BusNarrator struct {
	bus       *bus.Client
	sink      Sink
	voice     string
	sessionID string
	log       *slog.Logger
	subs      []*nats.Subscription

	mu      sync.Mutex
	current string
	done    func()
	pending []byte
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewBusNarrator(client *bus.Client, sink Sink, voice, sessionID string, log *slog.Logger) (*BusNarrator, error) {
	n := &BusNarrator{
		bus:       client,
		sink:      sink,
		voice:     voice,
		sessionID: sessionID,
		log:       log.With(slog.String("component", "bus-narrator"), slog.String("session_id", sessionID)),
	}
	audioSub, err := bus.Subscribe(client, protocol.SubjectTTSAudio, func(chunk protocol.AudioChunk, _ *nats.Msg) {
		n.handleAudio(chunk)
	})
	if err != nil {
		return nil, err
	}
	doneSub, err := bus.Subscribe(client, protocol.SubjectTTSDone, func(status protocol.TTSStatus, _ *nats.Msg) {
		n.handleStatus(status)
	})
	if err != nil {
		_ = audioSub.Unsubscribe()
		return nil, err
	}
	n.subs = []*nats.Subscription{audioSub, doneSub}
	return n, nil
}

func (n *BusNarrator) Speak(text string, done func()) {
	n.Cancel()

	id := uuid.NewString()
	n.mu.Lock()
	n.current = id
	n.done = done
	n.pending = nil
	n.mu.Unlock()

	req := protocol.TTSRequest{
		SessionID:   n.sessionID,
		UtteranceID: id,
		Text:        text,
		Voice:       n.voice,
		Timestamp:   time.Now().UTC(),
	}
	if err := n.bus.Publish(protocol.SubjectTTSRequest, req); err != nil {
		n.log.Warn("failed to publish tts request", slogError(err))
	}
}

func (n *BusNarrator) Cancel() {
	n.mu.Lock()
	id := n.current
	n.current = ""
	n.done = nil
	n.pending = nil
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.mu.Unlock()

	if id == "" {
		return
	}
	if err := n.bus.Publish(protocol.SubjectTTSCancel, protocol.TTSCancel{SessionID: n.sessionID, UtteranceID: id}); err != nil {
		n.log.Warn("failed to publish tts cancel", slogError(err))
	}
}

func (n *BusNarrator) Close() {
	n.Cancel()
	for _, sub := range n.subs {
		_ = sub.Unsubscribe()
	}
	n.wg.Wait()
}

func (n *BusNarrator) handleAudio(chunk protocol.AudioChunk) {
	if chunk.SessionID != n.sessionID {
		return
	}
	n.mu.Lock()
	if chunk.UtteranceID != n.current {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, chunk.PCM...)
	if !chunk.Final {
		n.mu.Unlock()
		return
	}
	pcm := n.pending
	n.pending = nil
	done := n.done
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		defer cancel()
		format := Format{SampleRate: chunk.SampleRate, Channels: chunk.Channels}
		if err := n.sink.Play(ctx, pcm, format); err != nil {
			return
		}
		n.mu.Lock()
		current := n.current == chunk.UtteranceID
		if current {
			n.current = ""
			n.done = nil
		}
		n.mu.Unlock()
		if current && done != nil {
			done()
		}
	}()
}

func (n *BusNarrator) handleStatus(status protocol.TTSStatus) {
	if status.SessionID != n.sessionID || status.Completed {
		return
	}
	n.mu.Lock()
	current := status.UtteranceID == n.current
	n.mu.Unlock()
	if current {
		n.log.Warn("narration was not synthesized", slog.String("utterance_id", status.UtteranceID), slog.String("error", status.Error))
	}
}

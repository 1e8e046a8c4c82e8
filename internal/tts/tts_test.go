package tts

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/natsserver"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordSink struct {
	mu    sync.Mutex
	plays [][]byte
}

func (r *recordSink) Play(ctx context.Context, pcm []byte, format Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, pcm)
	return nil
}

func (r *recordSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.plays)
}

type blockingSink struct {
	started chan struct{}
}

func (b *blockingSink) Play(ctx context.Context, pcm []byte, format Format) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestMockSynthSizesAudioByWordCount(t *testing.T) {
	synth := NewMockSynth(22050, 1, 2.5, 400*time.Millisecond)
	chunks, errs := synth.Synthesize(context.Background(), SynthRequest{UtteranceID: "u1", Text: "one two three four five"})

	var got []SynthChunk
	for chunk := range chunks {
		got = append(got, chunk)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(got))
	}
	total := 0
	for i, chunk := range got {
		if chunk.UtteranceID != "u1" {
			t.Fatalf("chunk %d lost utterance id", i)
		}
		if chunk.Final != (i == len(got)-1) {
			t.Fatalf("chunk %d final flag = %v", i, chunk.Final)
		}
		total += len(chunk.PCM)
	}
	if d := Duration(make([]byte, total), Format{SampleRate: 22050, Channels: 1}); d != 2*time.Second {
		t.Fatalf("expected 2s of audio, got %s", d)
	}
}

func TestMockSynthEmptyTextSendsFinalChunk(t *testing.T) {
	synth := NewMockSynth(16000, 1, 2.5, 0)
	chunks, _ := synth.Synthesize(context.Background(), SynthRequest{Text: "   "})
	chunk, ok := <-chunks
	if !ok || !chunk.Final || len(chunk.PCM) != 0 {
		t.Fatalf("expected one empty final chunk, got %+v (ok=%v)", chunk, ok)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.TTSConfig{Mode: "cloud"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, err := New(config.TTSConfig{Mode: "exec", Command: ""}); err == nil {
		t.Fatalf("expected error for empty exec command")
	}
}

func TestDuration(t *testing.T) {
	if d := Duration(make([]byte, 32000), Format{SampleRate: 16000, Channels: 1}); d != time.Second {
		t.Fatalf("expected 1s, got %s", d)
	}
	if d := Duration(make([]byte, 32000), Format{SampleRate: 16000, Channels: 2}); d != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", d)
	}
	if d := Duration(make([]byte, 10), Format{}); d != 0 {
		t.Fatalf("expected 0 for empty format, got %s", d)
	}
}

func TestPCMStreamerCopiesMonoToBothChannels(t *testing.T) {
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(16384))
	v := int16(-16384)
	binary.LittleEndian.PutUint16(pcm[2:], uint16(v))

	s := newPCMStreamer(pcm, 1)
	samples := make([][2]float64, 4)
	n, ok := s.Stream(samples)
	if n != 2 || !ok {
		t.Fatalf("expected 2 samples, got %d (ok=%v)", n, ok)
	}
	if samples[0] != [2]float64{0.5, 0.5} || samples[1] != [2]float64{-0.5, -0.5} {
		t.Fatalf("unexpected samples: %v", samples[:2])
	}
	if n, ok := s.Stream(samples); n != 0 || ok {
		t.Fatalf("expected drained streamer, got %d (ok=%v)", n, ok)
	}
}

func TestClockSinkStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ClockSink{}.Play(ctx, make([]byte, 32000), Format{SampleRate: 16000, Channels: 1})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestWriteWAV(t *testing.T) {
	pcm := make([]byte, 200)
	for i := 0; i < len(pcm)/2; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i*100))
	}
	path := filepath.Join(t.TempDir(), "slide.wav")
	if err := WriteWAV(path, pcm, Format{SampleRate: 16000, Channels: 1}); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open wav: %v", err)
	}
	defer file.Close()
	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		t.Fatalf("expected valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 {
		t.Fatalf("unexpected format: %d Hz, %d channels", dec.SampleRate, dec.NumChans)
	}
	if len(buf.Data) != 100 || buf.Data[3] != 300 {
		t.Fatalf("unexpected samples: len=%d", len(buf.Data))
	}
}

func TestWriteWAVRejectsOddPayload(t *testing.T) {
	if err := WriteWAV(filepath.Join(t.TempDir(), "bad.wav"), []byte{1, 2, 3}, Format{SampleRate: 16000, Channels: 1}); err == nil {
		t.Fatalf("expected alignment error")
	}
}

func TestLocalNarratorCompletes(t *testing.T) {
	sink := &recordSink{}
	narrator := NewLocalNarrator(NewMockSynth(16000, 1, 10, 0), sink, "en-US", "s1", testLogger())
	defer narrator.Close()

	var got Utterance
	narrator.OnUtterance = func(u Utterance) { got = u }

	done := make(chan struct{})
	narrator.Speak("hello there", func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("narration did not complete")
	}
	if sink.count() != 1 {
		t.Fatalf("expected one playback, got %d", sink.count())
	}
	if got.Text != "hello there" || got.ID == "" || len(got.PCM) == 0 {
		t.Fatalf("unexpected utterance: %+v", got)
	}
}

func TestLocalNarratorCancelSuppressesCompletion(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{})}
	narrator := NewLocalNarrator(NewMockSynth(16000, 1, 10, 0), sink, "", "s1", testLogger())

	called := make(chan struct{}, 1)
	narrator.Speak("never finishes", func() { called <- struct{}{} })

	select {
	case <-sink.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("sink never started")
	}
	narrator.Close()

	select {
	case <-called:
		t.Fatalf("done called after cancel")
	default:
	}
}

func TestBusNarratorRoundTrip(t *testing.T) {
	busCfg := config.BusConfig{Enabled: true, Embedded: true, Port: -1, ConnectTimeout: 2000}
	srv, err := natsserver.Start(busCfg, testLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer srv.Shutdown()

	busCfg.Servers = []string{srv.ClientURL()}
	client, err := bus.Connect(context.Background(), busCfg, "tts-test", testLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	ttsCfg := config.Default().TTS
	svc := NewService(context.Background(), ttsCfg, client, NewMockSynth(16000, 1, 10, 0), testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	defer svc.Close()

	sink := &recordSink{}
	narrator, err := NewBusNarrator(client, sink, "", "session-1", testLogger())
	if err != nil {
		t.Fatalf("bus narrator: %v", err)
	}
	defer narrator.Close()

	done := make(chan struct{})
	narrator.Speak("a short line of narration", func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("narration over the bus did not complete")
	}
	if sink.count() != 1 {
		t.Fatalf("expected one playback, got %d", sink.count())
	}
}

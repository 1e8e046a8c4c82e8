package tts

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Sink plays one utterance of PCM and returns when it has finished or ctx
// is cancelled.
type Sink interface {
	Play(ctx context.Context, pcm []byte, format Format) error
}

// NewSink returns the sink named by the player config.
func NewSink(kind string, format Format) (Sink, error) {
	switch kind {
	case "", "silent":
		return ClockSink{}, nil
	case "speaker":
		return NewSpeakerSink(format)
	default:
		return nil, fmt.Errorf("unsupported sink %q", kind)
	}
}

// ClockSink plays nothing but takes as long as the audio would.
type ClockSink struct{}

func (ClockSink) Play(ctx context.Context, pcm []byte, format Format) error {
	timer := time.NewTimer(Duration(pcm, format))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	speakerOnce sync.Once
	speakerErr  error
)

// SpeakerSink plays through the default audio device. The device is opened
// once per process at the sample rate of the first sink.
type SpeakerSink struct {
	rate beep.SampleRate
	mu   sync.Mutex
}

func NewSpeakerSink(format Format) (*SpeakerSink, error) {
	if format.SampleRate <= 0 {
		return nil, errors.New("speaker sample rate must be positive")
	}
	rate := beep.SampleRate(format.SampleRate)
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(rate, rate.N(100*time.Millisecond))
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("init speaker: %w", speakerErr)
	}
	return &SpeakerSink{rate: rate}, nil
}

func (s *SpeakerSink) Play(ctx context.Context, pcm []byte, format Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stream beep.Streamer = newPCMStreamer(pcm, format.Channels)
	if src := beep.SampleRate(format.SampleRate); src != s.rate {
		stream = beep.Resample(4, src, s.rate, stream)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// pcmStreamer feeds 16-bit little-endian PCM to beep. Mono is copied to
// both output channels.
type pcmStreamer struct {
	pcm      []byte
	channels int
	pos      int
}

func newPCMStreamer(pcm []byte, channels int) *pcmStreamer {
	if channels <= 0 {
		channels = 1
	}
	return &pcmStreamer{pcm: pcm, channels: channels}
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	frame := 2 * p.channels
	n := 0
	for n < len(samples) && p.pos+frame <= len(p.pcm) {
		left := float64(int16(binary.LittleEndian.Uint16(p.pcm[p.pos:]))) / 32768.0
		right := left
		if p.channels > 1 {
			right = float64(int16(binary.LittleEndian.Uint16(p.pcm[p.pos+2:]))) / 32768.0
		}
		samples[n] = [2]float64{left, right}
		p.pos += frame
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error { return nil }

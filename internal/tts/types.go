package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-present/internal/config"
)

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID   string
	UtteranceID string
	Text        string
	Voice       string
}

// SynthChunk contains signed 16-bit little-endian PCM.
type SynthChunk struct {
	SessionID   string
	UtteranceID string
	Sequence    int
	SampleRate  int
	Channels    int
	PCM         []byte
	Final       bool
}

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (c SynthChunk) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Duration is how long pcm plays for at format f.
func Duration(pcm []byte, f Format) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := len(pcm) / (2 * f.Channels)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// New builds the synthesizer selected by cfg.Mode.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "", "mock":
		chunk := time.Duration(cfg.ChunkDurationMS) * time.Millisecond
		return NewMockSynth(cfg.SampleRate, cfg.Channels, cfg.WordsPerSecond, chunk), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels)
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}

// collect drains a synthesis into one PCM buffer.
func collect(ctx context.Context, chunks <-chan SynthChunk, errs <-chan error) ([]byte, Format, error) {
	var (
		pcm    []byte
		format Format
	)
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			format = chunk.Format()
			pcm = append(pcm, chunk.PCM...)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return nil, format, err
			}
		case <-ctx.Done():
			return nil, format, ctx.Err()
		}
	}
	return pcm, format, nil
}

package tts

import (
	"context"
	"strings"
	"time"
)

// mockSynth produces silence lasting as long as the text would take to
// read aloud at wordsPerSecond.
type mockSynth struct {
	sampleRate     int
	channels       int
	wordsPerSecond float64
	chunk          time.Duration
}

func NewMockSynth(sampleRate, channels int, wordsPerSecond float64, chunk time.Duration) Synthesizer {
	if wordsPerSecond <= 0 {
		wordsPerSecond = 2.5
	}
	if chunk <= 0 {
		chunk = 400 * time.Millisecond
	}
	return &mockSynth{sampleRate: sampleRate, channels: channels, wordsPerSecond: wordsPerSecond, chunk: chunk}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		words := len(strings.Fields(req.Text))
		total := time.Duration(float64(words) / m.wordsPerSecond * float64(time.Second))
		frameBytes := 2 * m.channels
		remaining := int(total.Seconds()*float64(m.sampleRate)) * frameBytes
		perChunk := int(m.chunk.Seconds()*float64(m.sampleRate)) * frameBytes
		if perChunk <= 0 {
			perChunk = frameBytes
		}

		sequence := 0
		for {
			size := min(remaining, perChunk)
			remaining -= size
			chunk := SynthChunk{
				SessionID:   req.SessionID,
				UtteranceID: req.UtteranceID,
				Sequence:    sequence,
				SampleRate:  m.sampleRate,
				Channels:    m.channels,
				PCM:         make([]byte, size),
				Final:       remaining == 0,
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case chunks <- chunk:
			}
			if chunk.Final {
				return
			}
			sequence++
		}
	}()
	return chunks, errs
}

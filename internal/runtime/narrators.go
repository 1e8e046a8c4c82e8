package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/session"
	"github.com/loqalabs/loqa-present/internal/tts"
)

// NarratorFactory builds the per-session narrator selected by the player
// config. When an export directory is set, local narration is also saved
// as one WAV file per utterance.
func NarratorFactory(cfg config.Config, client *bus.Client, synth tts.Synthesizer, log *slog.Logger) (session.NarratorFactory, error) {
	sink, err := tts.NewSink(cfg.Player.Sink, tts.Format{SampleRate: cfg.TTS.SampleRate, Channels: cfg.TTS.Channels})
	if err != nil {
		return nil, err
	}
	exportDir := cfg.Player.ExportDir
	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return nil, fmt.Errorf("create export dir: %w", err)
		}
	}

	switch cfg.Player.Narrator {
	case "bus":
		if client == nil {
			return nil, fmt.Errorf("bus narrator requires the bus")
		}
		return func(id string) (session.Narrator, error) {
			return tts.NewBusNarrator(client, sink, cfg.TTS.Voice, id, log)
		}, nil
	case "", "local":
		return func(id string) (session.Narrator, error) {
			n := tts.NewLocalNarrator(synth, sink, cfg.TTS.Voice, id, log)
			if exportDir != "" {
				n.OnUtterance = func(u tts.Utterance) {
					path := filepath.Join(exportDir, fmt.Sprintf("%s-%s.wav", id, u.ID))
					if err := tts.WriteWAV(path, u.PCM, u.Format); err != nil {
						log.Warn("failed to export narration", slog.String("path", path), slog.String("error", err.Error()))
					}
				}
			}
			return n, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported narrator %q", cfg.Player.Narrator)
	}
}

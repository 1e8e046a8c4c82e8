package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Player.TransitionMS != 500 {
		t.Fatalf("expected 500ms transition, got %d", cfg.Player.TransitionMS)
	}
	if cfg.Script.MinSlides != 5 || cfg.Script.MaxSlides != 7 {
		t.Fatalf("expected 5-7 slides, got %d-%d", cfg.Script.MinSlides, cfg.Script.MaxSlides)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loqa.yaml")
	body := []byte(`
player:
  transition_ms: 250
  narrator: bus
  sink: silent
llm:
  mode: ollama
  endpoint: http://ollama:11434
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Player.TransitionMS != 250 || cfg.Player.Narrator != "bus" {
		t.Fatalf("unexpected player config: %+v", cfg.Player)
	}
	if cfg.LLM.Endpoint != "http://ollama:11434" {
		t.Fatalf("unexpected llm endpoint %q", cfg.LLM.Endpoint)
	}
	if cfg.TTS.SampleRate != 22050 {
		t.Fatalf("expected defaults to survive partial file, got %d", cfg.TTS.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_BUS_USERNAME", "alice")
	t.Setenv("LOQA_BUS_PASSWORD", "secret")
	t.Setenv("LOQA_BUS_TLS_INSECURE", "true")
	t.Setenv("LOQA_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_EVENT_STORE_PATH", "./tmp.db")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("LOQA_EVENT_STORE_RETENTION_DAYS", "7")
	t.Setenv("LOQA_PLAYER_TRANSITION_MS", "750")
	t.Setenv("LOQA_PLAYER_SINK", "speaker")
	t.Setenv("LOQA_TTS_WORDS_PER_SECOND", "3.5")
	t.Setenv("LOQA_SCRIPT_MAX_ATTEMPTS", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.EventStore.Path != "./tmp.db" || cfg.EventStore.RetentionMode != "persistent" || cfg.EventStore.RetentionDays != 7 {
		t.Fatalf("expected event store overrides, got %+v", cfg.EventStore)
	}
	if cfg.Player.TransitionMS != 750 || cfg.Player.Sink != "speaker" {
		t.Fatalf("expected player overrides, got %+v", cfg.Player)
	}
	if cfg.TTS.WordsPerSecond != 3.5 {
		t.Fatalf("expected words per second override, got %v", cfg.TTS.WordsPerSecond)
	}
	if cfg.Script.MaxAttempts != 5 {
		t.Fatalf("expected max attempts override, got %d", cfg.Script.MaxAttempts)
	}
}

func TestValidateRejectsBusNarratorWithoutBus(t *testing.T) {
	t.Setenv("LOQA_BUS_ENABLED", "false")
	t.Setenv("LOQA_PLAYER_NARRATOR", "bus")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRejectsBadTransition(t *testing.T) {
	t.Setenv("LOQA_PLAYER_TRANSITION_MS", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestTelemetryLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (TelemetryConfig{LogLevel: in}).Level(); got != want {
			t.Fatalf("level %q: expected %v, got %v", in, want, got)
		}
	}
}

package natsserver

import (
	"io"
	"log/slog"
	"testing"

	"github.com/loqalabs/loqa-present/internal/config"
)

func TestStartSkipsExternalBus(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := Start(config.BusConfig{Enabled: true, Embedded: false}, log)
	if err != nil || srv != nil {
		t.Fatalf("expected no server, got %v, %v", srv, err)
	}
	srv, err = Start(config.BusConfig{Enabled: false, Embedded: true}, log)
	if err != nil || srv != nil {
		t.Fatalf("expected no server when bus disabled, got %v, %v", srv, err)
	}
	srv.Shutdown()
}

func TestStartEmbedded(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := Start(config.BusConfig{Enabled: true, Embedded: true, Port: -1}, log)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Shutdown()
	if srv.ClientURL() == "" {
		t.Fatalf("expected client url")
	}
}

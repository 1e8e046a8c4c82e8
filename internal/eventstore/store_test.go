package eventstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-present/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTest(t *testing.T, cfg config.EventStoreConfig) *Store {
	t.Helper()
	cfg.Path = filepath.Join(t.TempDir(), "events.db")
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	return es
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	es, err := Open(ctx, config.EventStoreConfig{RetentionMode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.AppendSession(ctx, Session{ID: "s"}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{SessionID: "s", Type: "play"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if _, err := es.GetSession(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	es := openTest(t, config.EventStoreConfig{RetentionMode: "session"})
	ctx := context.Background()

	sess := Session{ID: "session-123", Title: "Intro", SlideCount: 3, Script: []byte(`[{"type":"TEXT"}]`)}
	if err := es.AppendSession(ctx, sess); err != nil {
		t.Fatalf("append session: %v", err)
	}
	for i, typ := range []string{"mounted", "advance", "seek"} {
		if err := es.AppendEvent(ctx, Event{SessionID: sess.ID, Type: typ, SlideIndex: i, Payload: []byte("p")}); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
	events, err := es.ListSessionEvents(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[2].Type != "seek" || events[2].SlideIndex != 2 || string(events[2].Payload) != "p" {
		t.Fatalf("unexpected event: %+v", events[2])
	}
	if events[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at to round-trip")
	}

	got, err := es.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Title != "Intro" || got.SlideCount != 3 || string(got.Script) != string(sess.Script) {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.EndedAt.IsZero() {
		t.Fatalf("session should still be open")
	}

	if err := es.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}
	got, _ = es.GetSession(ctx, sess.ID)
	if got.EndedAt.IsZero() {
		t.Fatalf("expected ended_at after EndSession")
	}
	if _, err := es.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	es := openTest(t, config.EventStoreConfig{RetentionMode: "persistent"})
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		es.clock = func() time.Time { return at }
		if err := es.AppendSession(ctx, Session{ID: id, Title: id, SlideCount: 1}); err != nil {
			t.Fatalf("append session: %v", err)
		}
	}
	sessions, err := es.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "c" || sessions[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", sessions)
	}
	if sessions[0].Script != nil {
		t.Fatalf("list should not load scripts")
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	es := openTest(t, config.EventStoreConfig{RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1})
	ctx := context.Background()

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(ctx, Session{ID: "old-session", SlideCount: 1}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{SessionID: "old-session", Type: "advance"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(ctx, Session{ID: "new-session", SlideCount: 1}); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListSessionEvents(ctx, "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
	if _, err := es.GetSession(ctx, "new-session"); err != nil {
		t.Fatalf("new session should survive: %v", err)
	}
}

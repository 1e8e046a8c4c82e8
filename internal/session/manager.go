// Package session keeps the live presentations of a runtime. Each session
// owns one playback controller and its narrator; state changes fan out to
// the bus, the event store and any watchers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-present/internal/bus"
	"github.com/loqalabs/loqa-present/internal/config"
	"github.com/loqalabs/loqa-present/internal/eventstore"
	"github.com/loqalabs/loqa-present/internal/playback"
	"github.com/loqalabs/loqa-present/internal/protocol"
	"github.com/loqalabs/loqa-present/internal/slide"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var ErrNotFound = errors.New("session: not found")

// Narrator is a playback narrator that owns resources.
type Narrator interface {
	playback.Narrator
	Close()
}

// NarratorFactory builds the narrator for a new session.
type NarratorFactory func(sessionID string) (Narrator, error)

// Deps are the collaborators of a Manager. Bus and Store may be nil.
type Deps struct {
	Bus       *bus.Client
	Store     *eventstore.Store
	Narrators NarratorFactory
	Clock     playback.Clock
	Logger    *slog.Logger
}

// Info is a listing entry.
type Info struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Snapshot  playback.Snapshot `json:"snapshot"`
}

type Manager struct {
	cfg   config.PlayerConfig
	deps  Deps
	log   *slog.Logger
	meter metric.Meter

	mu       sync.RWMutex
	sessions map[string]*Session

	recMu      sync.RWMutex
	records    chan eventstore.Event
	recsClosed bool
	wg         sync.WaitGroup

	slideChanges metric.Int64Counter
	narrations   metric.Int64Counter
	liveGauge    metric.Int64ObservableGauge
	registration metric.Registration
}

func NewManager(cfg config.PlayerConfig, deps Deps) (*Manager, error) {
	if deps.Narrators == nil {
		return nil, errors.New("session: narrator factory is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	m := &Manager{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger.With(slog.String("component", "session-manager")),
		meter:    otel.Meter("github.com/loqalabs/loqa-present/session"),
		sessions: make(map[string]*Session),
		records:  make(chan eventstore.Event, 256),

		slideChanges: noop.Int64Counter{},
		narrations:   noop.Int64Counter{},
	}
	if err := m.initMetrics(); err != nil {
		m.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	m.wg.Add(1)
	go m.runRecorder()
	return m, nil
}

func (m *Manager) initMetrics() error {
	var err error
	m.slideChanges, err = m.meter.Int64Counter("loqa.present.slide_changes", metric.WithDescription("Slides brought on screen"))
	if err != nil {
		return err
	}
	m.narrations, err = m.meter.Int64Counter("loqa.present.narrations", metric.WithDescription("Narrations started"))
	if err != nil {
		return err
	}
	m.liveGauge, err = m.meter.Int64ObservableGauge("loqa.present.sessions", metric.WithDescription("Live presentations"))
	if err != nil {
		return err
	}
	m.registration, err = m.meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		obs.ObserveInt64(m.liveGauge, int64(m.Len()))
		return nil
	}, m.liveGauge)
	return err
}

// Mount starts a presentation under id, or a fresh id when empty. A
// session already mounted under the same id is dismissed first.
func (m *Manager) Mount(ctx context.Context, id string, slides []slide.Slide) (*Session, error) {
	if len(slides) == 0 {
		return nil, playback.ErrNoSlides
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := m.Dismiss(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	narrator, err := m.deps.Narrators(id)
	if err != nil {
		return nil, fmt.Errorf("create narrator: %w", err)
	}

	sess := &Session{
		id:        id,
		slides:    append([]slide.Slide(nil), slides...),
		createdAt: time.Now().UTC(),
		watchers:  make(map[int]chan playback.Snapshot),
	}
	script, err := json.Marshal(sess.slides)
	if err != nil {
		m.log.Warn("failed to encode script", slog.String("error", err.Error()))
	}
	if err := m.deps.Store.AppendSession(ctx, eventstore.Session{ID: id, Title: slides[0].Title, SlideCount: len(slides), Script: script}); err != nil {
		m.log.Warn("failed to record session", slog.String("session_id", id), slog.String("error", err.Error()))
	}
	m.record(id, "mounted", 0, nil)

	controller, err := playback.New(sess.slides, narrator, playback.Options{
		Transition: time.Duration(m.cfg.TransitionMS) * time.Millisecond,
		Clock:      m.deps.Clock,
		Logger:     m.log.With(slog.String("session_id", id)),
		OnChange: func(prev, next playback.State) {
			m.handleChange(sess, prev, next)
		},
		OnClose: narrator.Close,
	})
	if err != nil {
		narrator.Close()
		return nil, err
	}
	sess.controller = controller

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.narrations.Add(ctx, 1)
	m.publish(sess, controller.Snapshot())

	m.log.Info("presentation mounted", slog.String("session_id", id), slog.Int("slides", len(slides)))
	return sess, nil
}

// Dismiss stops and forgets a session.
func (m *Manager) Dismiss(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	sess.close()
	m.record(id, "dismissed", sess.controller.State().Current, nil)
	if err := m.deps.Store.EndSession(ctx, id); err != nil {
		m.log.Warn("failed to end session", slog.String("session_id", id), slog.String("error", err.Error()))
	}
	m.log.Info("presentation dismissed", slog.String("session_id", id))
	return nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		infos = append(infos, Info{ID: sess.id, CreatedAt: sess.createdAt, Snapshot: sess.Snapshot()})
	}
	m.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Control applies a user action to a session.
func (m *Manager) Control(id string, action Action, fraction float64) error {
	sess, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	var payload []byte
	c := sess.controller
	switch action {
	case ActionPlayPause:
		c.PlayPause()
	case ActionReplay:
		c.Replay()
	case ActionSeek:
		payload, _ = json.Marshal(map[string]float64{"fraction": fraction})
		c.Seek(fraction)
	default:
		return fmt.Errorf("session: unknown action %q", action)
	}
	m.record(id, string(action), c.State().Current, payload)
	return nil
}

// Close dismisses every session and flushes the event recorder.
func (m *Manager) Close(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Dismiss(ctx, id)
	}
	if m.registration != nil {
		_ = m.registration.Unregister()
	}
	m.recMu.Lock()
	if !m.recsClosed {
		m.recsClosed = true
		close(m.records)
	}
	m.recMu.Unlock()
	m.wg.Wait()
}

// handleChange runs on the session's controller loop and must not block.
func (m *Manager) handleChange(sess *Session, prev, next playback.State) {
	ctx := context.Background()
	if next.Current != prev.Current {
		kind := string(sess.slides[next.Current].Kind)
		m.slideChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		m.record(sess.id, "slide", next.Current, nil)
	}
	if next.Narrating() && !prev.Narrating() {
		m.narrations.Add(ctx, 1)
	}
	if next.Finished && !prev.Finished {
		m.record(sess.id, "finished", next.Current, nil)
	}
	if next.Playing != prev.Playing && !next.Finished {
		evt := "paused"
		if next.Playing {
			evt = "playing"
		}
		m.record(sess.id, evt, next.Current, nil)
	}

	snap := snapshotOf(sess.slides, next)
	sess.notify(snap)
	m.publish(sess, snap)
}

func (m *Manager) publish(sess *Session, snap playback.Snapshot) {
	if m.deps.Bus == nil {
		return
	}
	msg := protocol.PlayerState{
		SessionID: sess.id,
		Current:   snap.Current,
		Outgoing:  snap.Outgoing,
		Playing:   snap.Playing,
		Finished:  snap.Finished,
		Phase:     snap.Phase().String(),
		Count:     snap.Count,
		Title:     snap.Title,
		Timestamp: time.Now().UTC(),
	}
	if err := m.deps.Bus.Publish(protocol.PlayerStateSubject(sess.id), msg); err != nil {
		m.log.Warn("failed to publish player state", slog.String("session_id", sess.id), slog.String("error", err.Error()))
	}
}

func (m *Manager) record(id, typ string, index int, payload []byte) {
	if m.deps.Store == nil {
		return
	}
	evt := eventstore.Event{SessionID: id, Type: typ, SlideIndex: index, Payload: payload, CreatedAt: time.Now().UTC()}
	m.recMu.RLock()
	defer m.recMu.RUnlock()
	if m.recsClosed {
		return
	}
	select {
	case m.records <- evt:
	default:
		m.log.Warn("event recorder backlog full, dropping event", slog.String("session_id", id), slog.String("type", typ))
	}
}

func (m *Manager) runRecorder() {
	defer m.wg.Done()
	for evt := range m.records {
		if err := m.deps.Store.AppendEvent(context.Background(), evt); err != nil {
			m.log.Warn("failed to record event", slog.String("session_id", evt.SessionID), slog.String("error", err.Error()))
		}
	}
}

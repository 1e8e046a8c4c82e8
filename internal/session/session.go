package session

import (
	"sync"
	"time"

	"github.com/loqalabs/loqa-present/internal/playback"
	"github.com/loqalabs/loqa-present/internal/slide"
)

// Action is a user control applied through the Manager.
type Action string

const (
	ActionPlayPause Action = "play_pause"
	ActionReplay    Action = "replay"
	ActionSeek      Action = "seek"
)

// Session is one mounted presentation.
type Session struct {
	id         string
	slides     []slide.Slide
	createdAt  time.Time
	controller *playback.Controller

	mu       sync.Mutex
	closed   bool
	nextID   int
	watchers map[int]chan playback.Snapshot
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Controller() *playback.Controller { return s.controller }

func (s *Session) Snapshot() playback.Snapshot { return s.controller.Snapshot() }

// Watch streams snapshots after every state change. A slow watcher misses
// intermediate snapshots rather than blocking playback. The channel is
// closed when the session is dismissed or cancel is called.
func (s *Session) Watch() (<-chan playback.Snapshot, func()) {
	ch := make(chan playback.Snapshot, 8)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
}

func (s *Session) notify(snap playback.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.mu.Unlock()

	// The narrator is released by the controller once teardown has run.
	s.controller.Close()
}

func snapshotOf(slides []slide.Slide, st playback.State) playback.Snapshot {
	cur := slides[st.Current]
	return playback.Snapshot{
		State:     st,
		Count:     len(slides),
		Title:     cur.Title,
		Narration: cur.Narration,
		Progress:  playback.Progress(st.Current, len(slides)),
	}
}

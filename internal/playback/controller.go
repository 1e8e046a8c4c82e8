// Package playback sequences a fixed list of slides in step with spoken
// narration. A Controller owns the player state; narration completion,
// transition timers and user actions are all delivered to it as events
// and handled one at a time.
package playback

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-present/internal/slide"
)

// DefaultTransition is how long the outgoing slide stays on screen.
const DefaultTransition = 500 * time.Millisecond

var (
	ErrNoSlides   = errors.New("playback: presentation has no slides")
	ErrNoNarrator = errors.New("playback: narrator is required")
)

// RenderFunc draws one slide for display.
type RenderFunc func(slide.Slide) string

// Frame is what the embedding surface shows: the current slide and, during
// a transition, the slide fading out over it.
type Frame struct {
	Snapshot
	CurrentView  string `json:"current_view"`
	OutgoingView string `json:"outgoing_view,omitempty"`
}

type Options struct {
	Transition time.Duration
	Clock      Clock
	Logger     *slog.Logger
	// OnChange runs on the controller loop after every event that changed
	// the state. It must not block.
	OnChange func(prev, next State)
	// OnReset runs after Reset has torn the controller down.
	OnReset func()
	// OnClose runs once on the controller loop at the end of teardown,
	// after narration has been cancelled. Owners release the narrator here.
	OnClose func()
}

type Controller struct {
	slides     []slide.Slide
	loop       serialLoop
	narration  *narrationDriver
	transition *transitionScheduler
	onChange   func(prev, next State)
	onReset    func()
	onClose    func()
	logger     *slog.Logger

	mu     sync.RWMutex
	state  State
	closed bool
}

// New starts playback at the first slide. Narration of that slide is
// requested before New returns unless another goroutine is already
// driving the controller.
func New(slides []slide.Slide, narrator Narrator, opts Options) (*Controller, error) {
	if len(slides) == 0 {
		return nil, ErrNoSlides
	}
	if narrator == nil {
		return nil, ErrNoNarrator
	}
	if opts.Transition <= 0 {
		opts.Transition = DefaultTransition
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Controller{
		slides:   append([]slide.Slide(nil), slides...),
		onChange: opts.OnChange,
		onReset:  opts.OnReset,
		onClose:  opts.OnClose,
		logger:   opts.Logger.With(slog.String("component", "playback")),
		state:    State{Current: 0, Outgoing: None, Playing: true},
	}
	c.narration = newNarrationDriver(narrator, c.post)
	c.transition = newTransitionScheduler(opts.Clock, opts.Transition, c.post)
	c.loop.post(func() { c.syncNarration(c.State()) })
	return c, nil
}

// Len returns the number of slides.
func (c *Controller) Len() int { return len(c.slides) }

// Slide returns the slide at index i.
func (c *Controller) Slide(i int) slide.Slide { return c.slides[i] }

// State returns the current player state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	st := c.State()
	cur := c.slides[st.Current]
	return Snapshot{
		State:     st,
		Count:     len(c.slides),
		Title:     cur.Title,
		Narration: cur.Narration,
		Progress:  Progress(st.Current, len(c.slides)),
	}
}

// Frame renders the current slide and, if set, the outgoing one.
func (c *Controller) Frame(render RenderFunc) Frame {
	snap := c.Snapshot()
	f := Frame{Snapshot: snap, CurrentView: render(c.slides[snap.Current])}
	if snap.Transitioning() {
		f.OutgoingView = render(c.slides[snap.Outgoing])
	}
	return f
}

// Closed reports whether the controller has been torn down.
func (c *Controller) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// PlayPause toggles playback, or replays from the start once finished.
func (c *Controller) PlayPause() {
	c.post(func() {
		if c.State().Finished {
			c.replay()
			return
		}
		c.update(func(s *State) { s.Playing = !s.Playing })
	})
}

// Replay jumps back to the first slide and plays. It is ignored while a
// transition is on screen.
func (c *Controller) Replay() {
	c.post(c.replay)
}

// Seek jumps to the slide under fraction of the progress bar and plays. It
// is ignored while a transition is on screen.
func (c *Controller) Seek(fraction float64) {
	c.post(func() { c.seek(fraction) })
}

// Close tears the controller down: narration is cancelled, any pending
// transition timer becomes a no-op and OnClose runs. When another goroutine
// is driving the loop the teardown runs after its queued events. Later
// calls are ignored.
func (c *Controller) Close() {
	c.loop.post(c.teardown)
}

// Reset closes the controller and hands control back to the embedder.
func (c *Controller) Reset() {
	c.loop.post(func() {
		if c.Closed() {
			return
		}
		c.teardown()
		if c.onReset != nil {
			c.onReset()
		}
	})
}

func (c *Controller) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.narration.stop()
	c.transition.stop()
	if c.onClose != nil {
		c.onClose()
	}
	c.logger.Debug("player closed")
}

// post queues fn as one event. After it runs, a changed state re-evaluates
// narration and is reported to OnChange.
func (c *Controller) post(fn func()) {
	c.loop.post(func() {
		if c.Closed() {
			return
		}
		prev := c.State()
		fn()
		next := c.State()
		if prev == next {
			return
		}
		c.syncNarration(next)
		if c.onChange != nil {
			c.onChange(prev, next)
		}
	})
}

func (c *Controller) update(mutate func(*State)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
}

// syncNarration speaks the current slide when playing, not finished and
// not transitioning; in every other state it cancels.
func (c *Controller) syncNarration(s State) {
	if s.Narrating() {
		c.narration.speak(c.slides[s.Current].Narration, c.onNarrationComplete)
		return
	}
	c.narration.cancel()
}

// advanceTo is the only path that changes the displayed slide.
func (c *Controller) advanceTo(index int) {
	if index == c.State().Current {
		return
	}
	last := len(c.slides) - 1
	c.update(func(s *State) {
		s.Outgoing = s.Current
		s.Current = index
		s.Finished = index == last
		// The last slide is shown as finished, not playing.
		if s.Finished {
			s.Playing = false
		}
	})
	c.transition.start(c.clearOutgoing)
}

func (c *Controller) clearOutgoing() {
	c.update(func(s *State) { s.Outgoing = None })
}

func (c *Controller) replay() {
	if c.State().Transitioning() {
		c.logger.Debug("replay ignored during transition")
		return
	}
	c.advanceTo(0)
	c.update(func(s *State) {
		s.Finished = false
		s.Playing = true
	})
}

func (c *Controller) seek(fraction float64) {
	if c.State().Transitioning() {
		c.logger.Debug("seek ignored during transition", slog.Float64("fraction", fraction))
		return
	}
	target := SeekIndex(fraction, len(c.slides))
	c.update(func(s *State) {
		s.Playing = true
		s.Finished = false
	})
	c.advanceTo(target)
}

func (c *Controller) onNarrationComplete() {
	cur := c.State().Current
	if cur < len(c.slides)-1 {
		c.advanceTo(cur + 1)
		return
	}
	c.update(func(s *State) {
		s.Playing = false
		s.Finished = true
	})
}

package playback

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loqalabs/loqa-present/internal/slide"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and fires due timers in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

// FireStopped runs timers that were stopped, as a timer that lost the race
// with Stop would.
func (c *fakeClock) FireStopped() {
	c.mu.Lock()
	var stale []*fakeTimer
	for _, t := range c.timers {
		if t.stopped && !t.fired {
			t.fired = true
			stale = append(stale, t)
		}
	}
	c.mu.Unlock()
	for _, t := range stale {
		t.fn()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeNarrator struct {
	mu      sync.Mutex
	spoken  []string
	dones   []func()
	cancels int
}

func (n *fakeNarrator) Speak(text string, done func()) {
	n.mu.Lock()
	n.spoken = append(n.spoken, text)
	n.dones = append(n.dones, done)
	n.mu.Unlock()
}

func (n *fakeNarrator) Cancel() {
	n.mu.Lock()
	n.cancels++
	n.mu.Unlock()
}

func (n *fakeNarrator) Spoken() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.spoken...)
}

func (n *fakeNarrator) Cancels() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancels
}

// Finish completes the most recent utterance.
func (n *fakeNarrator) Finish() {
	n.mu.Lock()
	done := n.dones[len(n.dones)-1]
	n.mu.Unlock()
	done()
}

// FinishAt completes utterance i, which may be stale.
func (n *fakeNarrator) FinishAt(i int) {
	n.mu.Lock()
	done := n.dones[i]
	n.mu.Unlock()
	done()
}

func testSlides(n int) []slide.Slide {
	out := make([]slide.Slide, n)
	for i := range out {
		out[i] = slide.Slide{
			Kind:      slide.KindText,
			Title:     fmt.Sprintf("Slide %d", i),
			Narration: fmt.Sprintf("narration %d", i),
			Body:      slide.Text{Content: fmt.Sprintf("- point %d", i)},
		}
	}
	return out
}

func newTestController(n int) (*Controller, *fakeNarrator, *fakeClock) {
	narrator := &fakeNarrator{}
	clock := &fakeClock{}
	c, err := New(testSlides(n), narrator, Options{Clock: clock})
	if err != nil {
		panic(err)
	}
	return c, narrator, clock
}

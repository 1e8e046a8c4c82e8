package playback

import "time"

// transitionScheduler holds the outgoing slide for a fixed duration and then
// clears it once. Each transition gets a generation token; a timer that
// fires after stop or after a newer transition finds a different token and
// does nothing. All methods run on the controller loop.
type transitionScheduler struct {
	clock    Clock
	duration time.Duration
	post     func(func())
	token    uint64
	pending  bool
	timer    Timer
}

func newTransitionScheduler(clock Clock, duration time.Duration, post func(func())) *transitionScheduler {
	return &transitionScheduler{clock: clock, duration: duration, post: post}
}

func (t *transitionScheduler) start(onClear func()) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.token++
	token := t.token
	t.pending = true
	t.timer = t.clock.AfterFunc(t.duration, func() {
		t.post(func() {
			if !t.pending || t.token != token {
				return
			}
			t.pending = false
			t.timer = nil
			onClear()
		})
	})
}

func (t *transitionScheduler) stop() {
	t.token++
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

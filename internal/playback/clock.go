package playback

import "time"

// Timer is a pending callback that can be stopped.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The callback may run on any goroutine.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock schedules with the runtime timer heap.
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

package playback

import "sync"

// serialLoop runs posted events one at a time, in order. The goroutine that
// finds the loop idle drains it; posts made while draining, including
// re-entrant posts from inside an event, are queued behind the current one.
type serialLoop struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (l *serialLoop) post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		next()
		l.mu.Lock()
	}
	l.running = false
	l.mu.Unlock()
}

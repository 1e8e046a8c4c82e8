package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/loqalabs/loqa-present/internal/playback"
	"github.com/loqalabs/loqa-present/internal/render"
	"github.com/loqalabs/loqa-present/internal/session"
)

const barWidth = 40

// view redraws the attached session whenever its state changes.
type view struct {
	out      io.Writer
	renderer render.Text

	mu     sync.Mutex
	sess   *session.Session
	cancel func()
	done   chan struct{}
}

func newView(out io.Writer) *view {
	return &view{out: out, renderer: render.Text{}}
}

func (v *view) session() *session.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sess
}

func (v *view) attach(sess *session.Session) {
	v.detach()
	updates, cancel := sess.Watch()
	done := make(chan struct{})

	v.mu.Lock()
	v.sess, v.cancel, v.done = sess, cancel, done
	v.mu.Unlock()

	v.redraw()
	go func() {
		defer close(done)
		for range updates {
			v.draw(sess)
		}
	}()
}

func (v *view) detach() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.sess, v.cancel, v.done = nil, nil, nil
	v.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (v *view) redraw() {
	if sess := v.session(); sess != nil {
		v.draw(sess)
	}
}

func (v *view) draw(sess *session.Session) {
	frame := sess.Controller().Frame(v.renderer.Render)
	fmt.Fprint(v.out, formatFrame(frame))
}

func formatFrame(f playback.Frame) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(f.CurrentView)
	if !strings.HasSuffix(f.CurrentView, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s  %s  [%s]\n", render.ProgressBar(f.Progress, barWidth), render.Caption(f.Current, f.Count), f.Phase())
	if f.Narrating() {
		fmt.Fprintf(&sb, "♪ %s\n", f.Narration)
	}
	return sb.String()
}

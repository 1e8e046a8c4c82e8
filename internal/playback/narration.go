package playback

// Narrator is the platform speech capability. Speak starts reading text and
// calls done when the utterance finishes on its own. After Cancel the
// pending done may still arrive; it is ignored. done may be called from any
// goroutine, including synchronously from Speak.
type Narrator interface {
	Speak(text string, done func())
	Cancel()
}

// narrationDriver keeps at most one utterance active and turns the
// narrator's completion into exactly one onComplete, or none if the
// utterance was superseded. All methods run on the controller loop.
type narrationDriver struct {
	narrator Narrator
	post     func(func())
	token    uint64
	active   bool
}

func newNarrationDriver(narrator Narrator, post func(func())) *narrationDriver {
	return &narrationDriver{narrator: narrator, post: post}
}

func (d *narrationDriver) speak(text string, onComplete func()) {
	if d.active {
		d.narrator.Cancel()
	}
	d.token++
	token := d.token
	d.active = true
	d.narrator.Speak(text, func() {
		d.post(func() {
			if !d.active || d.token != token {
				return
			}
			d.active = false
			onComplete()
		})
	})
}

func (d *narrationDriver) cancel() {
	if !d.active {
		return
	}
	d.active = false
	d.token++
	d.narrator.Cancel()
}

// stop cancels on the narrator even when no utterance is tracked.
func (d *narrationDriver) stop() {
	d.active = false
	d.token++
	d.narrator.Cancel()
}

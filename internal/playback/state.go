package playback

// None marks the absence of an outgoing slide.
const None = -1

// Phase is the coarse playback mode shown to the user.
type Phase int

const (
	PhasePlaying Phase = iota
	PhasePaused
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// State is the player state owned by a Controller.
type State struct {
	Current  int  `json:"current"`
	Outgoing int  `json:"outgoing"`
	Playing  bool `json:"playing"`
	Finished bool `json:"finished"`
}

// Transitioning reports whether the outgoing slide is still on screen.
func (s State) Transitioning() bool { return s.Outgoing != None }

// Narrating reports whether narration should be active in this state.
func (s State) Narrating() bool {
	return s.Playing && !s.Finished && !s.Transitioning()
}

func (s State) Phase() Phase {
	switch {
	case s.Finished:
		return PhaseFinished
	case s.Playing:
		return PhasePlaying
	default:
		return PhasePaused
	}
}

// Snapshot is a consistent read of the player for display.
type Snapshot struct {
	State
	Count     int     `json:"count"`
	Title     string  `json:"title"`
	Narration string  `json:"narration"`
	Progress  float64 `json:"progress"`
}

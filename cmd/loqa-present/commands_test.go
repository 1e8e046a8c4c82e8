package main

import (
	"strings"
	"testing"

	"github.com/loqalabs/loqa-present/internal/playback"
	"github.com/loqalabs/loqa-present/internal/session"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line     string
		name     string
		action   session.Action
		fraction float64
	}{
		{"p", "play_pause", session.ActionPlayPause, 0},
		{"  Pause ", "play_pause", session.ActionPlayPause, 0},
		{"replay", "replay", session.ActionReplay, 0},
		{"seek 0.5", "seek", session.ActionSeek, 0.5},
		{"seek 25%", "seek", session.ActionSeek, 0.25},
		{"reset", "new", "", 0},
		{"", "status", "", 0},
		{"q", "quit", "", 0},
	}
	for _, tc := range cases {
		cmd, err := parseCommand(tc.line)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.line, err)
		}
		if cmd.name != tc.name || cmd.action != tc.action || cmd.fraction != tc.fraction {
			t.Fatalf("%q: got %+v", tc.line, cmd)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"seek", "seek half", "dance"} {
		if _, err := parseCommand(line); err == nil {
			t.Fatalf("%q: expected error", line)
		}
	}
}

func TestFormatFrame(t *testing.T) {
	frame := playback.Frame{
		Snapshot: playback.Snapshot{
			State:     playback.State{Current: 1, Outgoing: playback.None, Playing: true},
			Count:     4,
			Narration: "Second slide.",
			Progress:  0.5,
		},
		CurrentView: "Title\n",
	}
	out := formatFrame(frame)
	if !strings.Contains(out, "Slide 2 of 4") || !strings.Contains(out, "[playing]") {
		t.Fatalf("missing caption: %q", out)
	}
	if !strings.Contains(out, "♪ Second slide.") {
		t.Fatalf("expected narration line: %q", out)
	}

	frame.Playing = false
	if out := formatFrame(frame); strings.Contains(out, "♪") {
		t.Fatalf("paused frame should not show narration: %q", out)
	}
}

func TestHelpDescribesReplayFromStart(t *testing.T) {
	for _, line := range strings.Split(helpText, "\n") {
		if strings.Contains(line, "replay") {
			if !strings.Contains(line, "first slide") {
				t.Fatalf("replay help should mention the first slide: %q", line)
			}
			return
		}
	}
	t.Fatal("help text does not describe replay")
}

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-present/internal/session"
)

const helpText = `Commands:
  p, play, pause     toggle playback
  r, replay          restart the presentation from the first slide
  seek <n>           jump along the progress bar (0.5, 50%, 1)
  status             redraw the current slide
  new                dismiss this presentation and start another
  q, quit            exit`

type command struct {
	name     string
	action   session.Action
	fraction float64
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{name: "status"}, nil
	}
	switch name := fields[0]; name {
	case "p", "play", "pause":
		return command{name: "play_pause", action: session.ActionPlayPause}, nil
	case "r", "replay":
		return command{name: "replay", action: session.ActionReplay}, nil
	case "s", "seek":
		if len(fields) != 2 {
			return command{}, errors.New("usage: seek <fraction or percent>")
		}
		fraction, err := parseFraction(fields[1])
		if err != nil {
			return command{}, err
		}
		return command{name: "seek", action: session.ActionSeek, fraction: fraction}, nil
	case "status", "new", "reset", "help", "?":
		switch name {
		case "reset":
			name = "new"
		case "?":
			name = "help"
		}
		return command{name: name}, nil
	case "q", "quit", "exit":
		return command{name: "quit"}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q, type help", name)
	}
}

// parseFraction accepts 0.25 or 25%. Out of range values are passed on
// and clamped by the player.
func parseFraction(s string) (float64, error) {
	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seek position %q", s)
	}
	if percent {
		v /= 100
	}
	return v, nil
}

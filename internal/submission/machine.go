package submission

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

type Event string

const (
	EventStart       Event = "start"
	EventFramesReady Event = "frames_ready"
	EventVerdict     Event = "verdict"
	EventFail        Event = "fail"
)

var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateExtracting,
		EventFail:  StateFailed,
	},
	StateExtracting: {
		EventFramesReady: StateSubmitting,
		EventFail:        StateFailed,
	},
	StateSubmitting: {
		EventVerdict: StateDone,
		EventFail:    StateFailed,
	},
}

func Transition(from State, ev Event) (State, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}

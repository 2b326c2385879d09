package demo

import (
	"errors"
	"fmt"
)

// RequestState is the lifecycle state of the workspace's analysis request
type RequestState int

const (
	Idle RequestState = iota
	InFlight
	Succeeded
	Failed
)

func (s RequestState) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("RequestState(%d)", int(s))
}

// MarshalText renders the state by name in JSON.
func (s RequestState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a RequestState transition
type Event int

const (
	EventStart Event = iota
	EventSucceed
	EventFail
	EventInvalidate
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventSucceed:
		return "succeed"
	case EventFail:
		return "fail"
	case EventInvalidate:
		return "invalidate"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// ErrInvalidTransition is returned for an event the current state does not accept
var ErrInvalidTransition = errors.New("invalid request state transition")

// Transition returns the state reached from `from` on ev.
func Transition(from RequestState, ev Event) (RequestState, error) {
	switch from {
	case Idle, Succeeded, Failed:
		if ev == EventStart {
			return InFlight, nil
		}
	case InFlight:
		switch ev {
		case EventSucceed:
			return Succeeded, nil
		case EventFail:
			return Failed, nil
		case EventInvalidate:
			return Idle, nil
		}
	}
	return from, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, from)
}

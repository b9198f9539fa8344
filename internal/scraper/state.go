package scraper

import (
	"fmt"
)

// State of one scrape cycle.
type State int

const (
	StateIdle State = iota
	StateCooldown
	StateAttempting
	StateCommitting
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCooldown:
		return "cooldown"
	case StateAttempting:
		return "attempting"
	case StateCommitting:
		return "committing"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Event int

const (
	EventBlocked   Event = iota // cooldown active or a cycle already running
	EventClear                  // gate open, start attempting
	EventSucceeded              // source returned a usable list
	EventRetry                  // attempt failed, budget left
	EventGiveUp                 // attempt failed, budget spent
	EventCommitted              // store accepted the snapshot
	EventReset                  // back to idle after a blocked or exhausted cycle
)

func (e Event) String() string {
	names := [...]string{"blocked", "clear", "succeeded", "retry", "give_up", "committed", "reset"}
	if e < 0 || int(e) >= len(names) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return names[e]
}

// Transition is the scrape cycle policy. It has no side effects.
func Transition(from State, ev Event) (State, error) {
	switch from {
	case StateIdle:
		switch ev {
		case EventBlocked:
			return StateCooldown, nil
		case EventClear:
			return StateAttempting, nil
		}
	case StateCooldown:
		if ev == EventReset {
			return StateIdle, nil
		}
	case StateAttempting:
		switch ev {
		case EventSucceeded:
			return StateCommitting, nil
		case EventRetry:
			return StateAttempting, nil
		case EventGiveUp:
			return StateExhausted, nil
		}
	case StateCommitting:
		if ev == EventCommitted {
			return StateIdle, nil
		}
	case StateExhausted:
		if ev == EventReset {
			return StateIdle, nil
		}
	}
	return from, fmt.Errorf("invalid transition %s --%s-->", from, ev)
}

// AfterFailure decides between another attempt and giving up.
func AfterFailure(attempt, maxRetries int) Event {
	if attempt < maxRetries {
		return EventRetry
	}
	return EventGiveUp
}

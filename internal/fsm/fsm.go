// Package fsm holds the recording and notes state machines.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

const (
	EventStart Event = "start"
	EventStop  Event = "stop"
)

// Transition applies one recording event. Stop is accepted from any state.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventStop:
			return StateIdle, nil
		default:
			return current, invalidTransition(string(current), string(event))
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateIdle, nil
		default:
			return current, invalidTransition(string(current), string(event))
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

type NotesState string

type NotesEvent string

const (
	NotesEmpty   NotesState = "empty"
	NotesPending NotesState = "pending"
	NotesReady   NotesState = "ready"
	NotesFailed  NotesState = "failed"
)

const (
	NotesRequest   NotesEvent = "request"
	NotesSucceeded NotesEvent = "succeeded"
	NotesErrored   NotesEvent = "errored"
)

// NotesTransition applies one notes event. A request is accepted from every
// settled state so a failed or stale result can be regenerated.
func NotesTransition(current NotesState, event NotesEvent) (NotesState, error) {
	switch current {
	case NotesEmpty, NotesReady, NotesFailed:
		if event == NotesRequest {
			return NotesPending, nil
		}
		return current, invalidTransition(string(current), string(event))
	case NotesPending:
		switch event {
		case NotesSucceeded:
			return NotesReady, nil
		case NotesErrored:
			return NotesFailed, nil
		default:
			return current, invalidTransition(string(current), string(event))
		}
	default:
		return current, fmt.Errorf("unknown notes state %q", current)
	}
}

func invalidTransition(state string, event string) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

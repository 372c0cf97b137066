// Package form holds the lifecycle of a food-analysis form session and the
// checks a submission has to pass before anything is sent downstream.
package form

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when an event is not allowed in the
// current state. The machine is left untouched.
var ErrInvalidTransition = errors.New("invalid form transition")

type State int

const (
	Idle State = iota
	Editing
	Submitting
	Viewing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Viewing:
		return "viewing"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Event int

const (
	Edit Event = iota
	Submit
	Succeed
	Fail
	Dismiss
	Reset
)

func (e Event) String() string {
	switch e {
	case Edit:
		return "edit"
	case Submit:
		return "submit"
	case Succeed:
		return "succeed"
	case Fail:
		return "fail"
	case Dismiss:
		return "dismiss"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Machine tracks one form session. It is safe for concurrent use.
//
// Idle, Editing and Viewing accept Edit. Editing and Viewing accept Submit.
// Submitting resolves to Viewing on Succeed or to Failed on Fail. Failed goes
// back to whatever state preceded the submission on Dismiss or Edit. Reset is
// accepted everywhere.
type Machine struct {
	mu     sync.Mutex
	state  State
	resume State
	err    string
}

// NewMachine returns a machine in the Idle state.
func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err is the message recorded by the last Fail. It is cleared when the
// machine leaves Failed.
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Fire applies ev and returns the new state.
func (m *Machine) Fire(ev Event) (State, error) {
	return m.fire(ev, "")
}

// FailWith moves Submitting to Failed and records msg.
func (m *Machine) FailWith(msg string) (State, error) {
	return m.fire(Fail, msg)
}

func (m *Machine) fire(ev Event, msg string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.next(ev)
	if !ok {
		return m.state, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev, m.state)
	}

	switch {
	case ev == Submit:
		m.resume = m.state
	case ev == Fail:
		m.err = msg
	case next != Failed:
		m.err = ""
	}
	if ev == Reset {
		m.resume = Idle
	}
	m.state = next
	return next, nil
}

func (m *Machine) next(ev Event) (State, bool) {
	if ev == Reset {
		return Idle, true
	}
	switch m.state {
	case Idle:
		if ev == Edit {
			return Editing, true
		}
	case Editing, Viewing:
		switch ev {
		case Edit:
			return Editing, true
		case Submit:
			return Submitting, true
		}
	case Submitting:
		switch ev {
		case Succeed:
			return Viewing, true
		case Fail:
			return Failed, true
		}
	case Failed:
		if ev == Dismiss || ev == Edit {
			return m.resume, true
		}
	}
	return m.state, false
}

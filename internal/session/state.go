// Package session implements the Session state machine and its DAP
// surface: the component that coordinates the client (editor), the GDB
// child process, and the remote target's three independent lifecycles
// (spec §4.4 "Session (state machine)", §6 "External interfaces").
package session

import "fmt"

// State is one node of the session lifecycle (spec §4.4 "States").
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateConfigured
	StateRunning
	StateStopped
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitionError reports an operation attempted from a state the
// transition table (spec §4.4) does not allow it in.
type transitionError struct {
	Op    string
	State State
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("session: %q not valid in state %s", e.Op, e.State)
}

// setState moves the session to s, logging the transition the way every
// other component in this module logs its lifecycle (spec §4.4 table).
func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	s.logf("session: %s -> %s", prev, next)
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// requireState returns a *transitionError if the session isn't currently
// in one of the given states.
func (s *Session) requireState(op string, allowed ...State) error {
	cur := s.State()
	for _, a := range allowed {
		if cur == a {
			return nil
		}
	}
	return &transitionError{Op: op, State: cur}
}

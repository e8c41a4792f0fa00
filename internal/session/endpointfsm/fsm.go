package endpointfsm

import (
	"fmt"
	"sync"
)

// State is the local endpoint lifecycle state.
type State string

const (
	StateUnopened State = "unopened"
	StateOpening  State = "opening"
	StateOpen     State = "open"
	StatePaired   State = "paired"
	StateClosed   State = "closed"
)

// FSM tracks the local endpoint lifecycle and owns the two-participant
// capacity invariant. Every participant-count mutation funnels through one
// guarded transition; rejected transitions never mutate state.
type FSM struct {
	mu    sync.Mutex
	state State
}

// New returns an endpoint FSM in the unopened state.
func New() *FSM {
	return &FSM{state: StateUnopened}
}

// State returns the current lifecycle state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ParticipantCount derives the participant count from lifecycle state:
// 0 before the local peer is open, 1 once open, 2 once paired.
func (f *FSM) ParticipantCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateOpen:
		return 1
	case StatePaired:
		return 2
	default:
		return 0
	}
}

// BeginOpen transitions Unopened -> Opening.
func (f *FSM) BeginOpen() error {
	return f.transition(StateUnopened, StateOpening)
}

// ConfirmOpen transitions Opening -> Open (count becomes 1).
func (f *FSM) ConfirmOpen() error {
	return f.transition(StateOpening, StateOpen)
}

// FailOpen transitions Opening -> Closed on endpoint open failure.
func (f *FSM) FailOpen() error {
	return f.transition(StateOpening, StateClosed)
}

// AdmitRemote transitions Open -> Paired (count becomes 2). While already
// paired it fails without mutating state: the caller must close the inbound
// attempt immediately.
func (f *FSM) AdmitRemote() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case StateOpen:
		f.state = StatePaired
		return nil
	case StatePaired:
		return fmt.Errorf("session already has two participants")
	default:
		return fmt.Errorf("cannot admit remote in state %s", f.state)
	}
}

// RemoteDeparted transitions Paired -> Open (count reverts to 1). The
// endpoint stays usable for a new inbound pairing under the same identity.
func (f *FSM) RemoteDeparted() error {
	return f.transition(StatePaired, StateOpen)
}

// Close transitions any state to Closed. Safe to call repeatedly and from a
// partially-initialized endpoint.
func (f *FSM) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateClosed
}

func (f *FSM) transition(from, to State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != from {
		return fmt.Errorf("cannot transition %s -> %s from state %s", from, to, f.state)
	}
	f.state = to
	return nil
}

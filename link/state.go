package link

import "sync/atomic"

// State is the protocol state of a Link.
type State uint32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// AtomicState holds a State and only allows the transitions
// Closed → Connecting → Open → Closing → Closed, plus Connecting → Closed
// for a failed establishment.
type AtomicState struct {
	state atomic.Uint32
}

func (st *AtomicState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

// Set forces the state.
func (st *AtomicState) Set(state State) {
	st.state.Store(uint32(state))
}

func (st *AtomicState) IsClosed() bool {
	return st.Get() == StateClosed
}

func (st *AtomicState) IsOpen() bool {
	return st.Get() == StateOpen
}

func (st *AtomicState) ToConnecting() bool {
	return st.state.CompareAndSwap(uint32(StateClosed), uint32(StateConnecting))
}

func (st *AtomicState) ToOpen() bool {
	if st.IsOpen() {
		return true
	}

	return st.state.CompareAndSwap(uint32(StateConnecting), uint32(StateOpen))
}

// AbortConnecting moves a failed establishment back to Closed.
func (st *AtomicState) AbortConnecting() bool {
	return st.state.CompareAndSwap(uint32(StateConnecting), uint32(StateClosed))
}

func (st *AtomicState) ToClosing() bool {
	return st.state.CompareAndSwap(uint32(StateOpen), uint32(StateClosing))
}

func (st *AtomicState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(StateClosing), uint32(StateClosed))
}

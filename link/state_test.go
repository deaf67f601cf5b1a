package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{state: StateClosed, want: "Closed"},
		{state: StateConnecting, want: "Connecting"},
		{state: StateOpen, want: "Open"},
		{state: StateClosing, want: "Closing"},
		{state: State(99), want: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestAtomicState_Lifecycle(t *testing.T) {
	var st AtomicState
	assert.True(t, st.IsClosed())

	assert.False(t, st.ToOpen(), "cannot open without connecting")
	assert.False(t, st.ToClosing(), "cannot close a closed link")

	assert.True(t, st.ToConnecting())
	assert.False(t, st.ToConnecting())
	assert.Equal(t, "Connecting", st.String())

	assert.True(t, st.ToOpen())
	assert.True(t, st.ToOpen(), "ToOpen is idempotent")
	assert.True(t, st.IsOpen())

	assert.True(t, st.ToClosing())
	assert.False(t, st.ToClosing())

	assert.True(t, st.ToClosed())
	assert.True(t, st.ToClosed(), "ToClosed is idempotent")
	assert.Equal(t, StateClosed, st.Get())
}

func TestAtomicState_AbortConnecting(t *testing.T) {
	var st AtomicState
	assert.False(t, st.AbortConnecting())

	st.ToConnecting()
	assert.True(t, st.AbortConnecting())
	assert.True(t, st.IsClosed())

	st.Set(StateOpen)
	assert.False(t, st.AbortConnecting())
}

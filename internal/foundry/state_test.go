package foundry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_Allowed(t *testing.T) {
	paths := [][]State{
		{Idle, Preparing, PrimaryRunning, Succeeded},
		{Idle, Preparing, PrimaryRunning, PrimaryFailed, FallbackRunning, Succeeded},
		{Idle, Preparing, PrimaryRunning, PrimaryFailed, FallbackRunning, FatallyFailed},
		{Idle, Preparing, PrimaryRunning, PrimaryFailed, FatallyFailed},
		{Idle, Preparing, FatallyFailed},
		{Idle, Preparing, PrimaryRunning, Succeeded, FatallyFailed},
	}
	for _, path := range paths {
		cur := path[0]
		for i := 1; i < len(path); i++ {
			require.NoError(t, Transition(&cur, path[i-1], path[i]), "%v", path)
		}
		assert.True(t, IsTerminal(cur))
	}
}

func TestTransition_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		from, to State
	}{
		{"skip preparing", Idle, PrimaryRunning},
		{"primary straight to fallback", PrimaryRunning, FallbackRunning},
		{"second fallback tier", FallbackRunning, PrimaryFailed},
		{"rerun primary", PrimaryFailed, PrimaryRunning},
		{"leave fatal", FatallyFailed, Succeeded},
		{"restart", Succeeded, Idle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := tt.from
			err := Transition(&cur, tt.from, tt.to)
			assert.Error(t, err)
			assert.Equal(t, tt.from, cur, "state must not change on rejection")
		})
	}
}

func TestTransition_StaleFrom(t *testing.T) {
	cur := PrimaryRunning
	err := Transition(&cur, Preparing, PrimaryRunning)
	assert.ErrorContains(t, err, "expected preparing, got primary_running")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fallback_running", FallbackRunning.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.False(t, IsTerminal(PrimaryFailed))
}

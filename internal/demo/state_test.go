package demo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from RequestState
		ev   Event
		want RequestState
		ok   bool
	}{
		{Idle, EventStart, InFlight, true},
		{Succeeded, EventStart, InFlight, true},
		{Failed, EventStart, InFlight, true},
		{InFlight, EventSucceed, Succeeded, true},
		{InFlight, EventFail, Failed, true},
		{InFlight, EventInvalidate, Idle, true},

		{InFlight, EventStart, InFlight, false},
		{Idle, EventSucceed, Idle, false},
		{Idle, EventFail, Idle, false},
		{Idle, EventInvalidate, Idle, false},
		{Succeeded, EventSucceed, Succeeded, false},
		{Succeeded, EventInvalidate, Succeeded, false},
		{Failed, EventFail, Failed, false},
		{Failed, EventSucceed, Failed, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestStateJSON(t *testing.T) {
	out, err := json.Marshal(map[string]RequestState{"s": InFlight})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"in_flight"}`, string(out))
	assert.Equal(t, "RequestState(9)", RequestState(9).String())
}

package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
		want State
	}{
		{StateIdle, EventBlocked, StateCooldown},
		{StateIdle, EventClear, StateAttempting},
		{StateCooldown, EventReset, StateIdle},
		{StateAttempting, EventSucceeded, StateCommitting},
		{StateAttempting, EventRetry, StateAttempting},
		{StateAttempting, EventGiveUp, StateExhausted},
		{StateCommitting, EventCommitted, StateIdle},
		{StateExhausted, EventReset, StateIdle},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.ev)
		require.NoError(t, err, "%s --%s-->", tc.from, tc.ev)
		assert.Equal(t, tc.want, got, "%s --%s-->", tc.from, tc.ev)
	}
}

func TestTransitionRejectsInvalid(t *testing.T) {
	invalid := []struct {
		from State
		ev   Event
	}{
		{StateIdle, EventCommitted},
		{StateCooldown, EventClear},
		{StateCommitting, EventRetry},
		{StateExhausted, EventSucceeded},
	}
	for _, tc := range invalid {
		got, err := Transition(tc.from, tc.ev)
		assert.Error(t, err)
		assert.Equal(t, tc.from, got)
	}
}

func TestAfterFailure(t *testing.T) {
	assert.Equal(t, EventRetry, AfterFailure(1, 3))
	assert.Equal(t, EventRetry, AfterFailure(2, 3))
	assert.Equal(t, EventGiveUp, AfterFailure(3, 3))
	assert.Equal(t, EventGiveUp, AfterFailure(1, 1))
}

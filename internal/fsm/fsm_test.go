// Package fsm tests the generic FSM wrapper.
package fsm

// file: internal/fsm/fsm_test.go

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/promptd/internal/logging"
)

// States and events used across the tests.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateFinished State = "finished"

	EventStart Event = "start"
	EventPause Event = "pause"
	EventStop  Event = "stop"
	EventReset Event = "reset"
)

// buildTestFSM wires a small lifecycle machine used by most tests.
func buildTestFSM(t *testing.T) FSM {
	t.Helper()
	builder := NewFSM(StateIdle, logging.GetNoopLogger())
	builder.AddTransition(Transition{From: []State{StateIdle}, Event: EventStart, To: StateRunning})
	builder.AddTransition(Transition{From: []State{StateRunning}, Event: EventPause, To: StatePaused})
	builder.AddTransition(Transition{From: []State{StateRunning, StatePaused}, Event: EventStop, To: StateFinished})
	builder.AddTransition(Transition{From: []State{StatePaused}, Event: EventStart, To: StateRunning})
	builder.AddTransition(Transition{From: []State{StateFinished}, Event: EventReset, To: StateIdle})
	require.NoError(t, builder.Build(), "Failed to build test FSM.")
	return builder
}

func TestFSM_BasicTransitions_Succeed(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()

	assert.Equal(t, StateIdle, machine.CurrentState())

	require.NoError(t, machine.Transition(ctx, EventStart, nil))
	assert.Equal(t, StateRunning, machine.CurrentState())

	require.NoError(t, machine.Transition(ctx, EventStop, nil))
	assert.Equal(t, StateFinished, machine.CurrentState())
}

func TestFSM_InvalidTransition_ReturnsError(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()

	assert.False(t, machine.CanTransition(EventStop), "Stop is not defined from Idle.")
	err := machine.Transition(ctx, EventStop, nil)
	require.Error(t, err, "Transition on Stop from Idle should fail.")
	assert.Equal(t, StateIdle, machine.CurrentState(), "Failed transition must not change state.")
}

func TestFSM_MultipleFromStates_ShareEvent(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()

	require.NoError(t, machine.Transition(ctx, EventStart, nil))
	require.NoError(t, machine.Transition(ctx, EventPause, nil))
	require.NoError(t, machine.Transition(ctx, EventStop, nil), "Stop is defined from Paused as well as Running.")
	assert.Equal(t, StateFinished, machine.CurrentState())
}

func TestFSM_GuardCondition_CancelsTransition(t *testing.T) {
	allow := false
	builder := NewFSM(StateIdle, logging.GetNoopLogger())
	builder.AddTransition(Transition{
		From:  []State{StateIdle},
		Event: EventStart,
		To:    StateRunning,
		Condition: func(_ context.Context, _ Event, _ interface{}) bool {
			return allow
		},
	})
	require.NoError(t, builder.Build())

	ctx := context.Background()
	err := builder.Transition(ctx, EventStart, nil)
	require.Error(t, err, "Guard returning false should cancel the transition.")
	assert.Equal(t, StateIdle, builder.CurrentState())

	allow = true
	require.NoError(t, builder.Transition(ctx, EventStart, nil))
	assert.Equal(t, StateRunning, builder.CurrentState())
}

func TestFSM_Action_ReceivesEventData(t *testing.T) {
	var got atomic.Value
	builder := NewFSM(StateIdle, logging.GetNoopLogger())
	builder.AddTransition(Transition{
		From:  []State{StateIdle},
		Event: EventStart,
		To:    StateRunning,
		Action: func(_ context.Context, event Event, data interface{}) error {
			got.Store(data)
			return nil
		},
	})
	require.NoError(t, builder.Build())

	require.NoError(t, builder.Transition(context.Background(), EventStart, "payload"))
	assert.Equal(t, "payload", got.Load(), "Action should receive the data passed to Transition.")
}

func TestFSM_ConflictingDestinations_FailBuild(t *testing.T) {
	builder := NewFSM(StateIdle, logging.GetNoopLogger())
	builder.AddTransition(Transition{From: []State{StateIdle}, Event: EventStart, To: StateRunning})
	builder.AddTransition(Transition{From: []State{StatePaused}, Event: EventStart, To: StateFinished})
	err := builder.Build()
	require.Error(t, err, "Same event with two destinations must fail Build.")
}

func TestFSM_MissingFromStates_FailBuild(t *testing.T) {
	builder := NewFSM(StateIdle, logging.GetNoopLogger())
	builder.AddTransition(Transition{Event: EventStart, To: StateRunning})
	require.Error(t, builder.Build(), "Transition without From states must fail Build.")
}

func TestFSM_Reset_ReturnsToInitialState(t *testing.T) {
	machine := buildTestFSM(t)
	ctx := context.Background()

	require.NoError(t, machine.Transition(ctx, EventStart, nil))
	require.NoError(t, machine.Transition(ctx, EventStop, nil))
	require.NoError(t, machine.Reset())
	assert.Equal(t, StateIdle, machine.CurrentState())
}

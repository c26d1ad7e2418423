// file: internal/session/state.go
package session

import (
	"github.com/cockroachdb/errors"

	"github.com/dkoosis/promptd/internal/fsm"
	"github.com/dkoosis/promptd/internal/logging"
)

// Request lifecycle states. Each in-flight request owns its own machine.
const (
	StateReceived  fsm.State = "received"  // Frame accepted, not yet resolving.
	StateResolving fsm.State = "resolving" // Registry.Resolve in progress.
	StateStreaming fsm.State = "streaming" // Chunks being emitted.
	StateCompleted fsm.State = "completed" // Terminal: completed or error frame sent.
	StateCancelled fsm.State = "cancelled" // Terminal: cancelled frame sent.
)

// Request lifecycle events.
const (
	EventBeginResolve     fsm.Event = "begin_resolve"
	EventResolveSucceeded fsm.Event = "resolve_succeeded"
	EventResolveFailed    fsm.Event = "resolve_failed"
	EventStreamFinished   fsm.Event = "stream_finished"
	EventCancel           fsm.Event = "cancel"
)

// IsTerminalState reports whether no further transitions can occur.
func IsTerminalState(s fsm.State) bool {
	return s == StateCompleted || s == StateCancelled
}

// newRequestMachine builds the per-request state machine:
//
//	received --begin_resolve--> resolving
//	resolving --resolve_succeeded--> streaming
//	resolving --resolve_failed--> completed (error frame)
//	streaming --stream_finished--> completed
//	received|resolving|streaming --cancel--> cancelled
func newRequestMachine(logger logging.Logger) (fsm.FSM, error) {
	builder := fsm.NewFSM(StateReceived, logger)

	builder.AddTransition(fsm.Transition{
		From:  []fsm.State{StateReceived},
		Event: EventBeginResolve,
		To:    StateResolving,
	})
	builder.AddTransition(fsm.Transition{
		From:  []fsm.State{StateResolving},
		Event: EventResolveSucceeded,
		To:    StateStreaming,
	})
	builder.AddTransition(fsm.Transition{
		From:  []fsm.State{StateResolving},
		Event: EventResolveFailed,
		To:    StateCompleted,
	})
	builder.AddTransition(fsm.Transition{
		From:  []fsm.State{StateStreaming},
		Event: EventStreamFinished,
		To:    StateCompleted,
	})
	builder.AddTransition(fsm.Transition{
		From:  []fsm.State{StateReceived, StateResolving, StateStreaming},
		Event: EventCancel,
		To:    StateCancelled,
	})

	if err := builder.Build(); err != nil {
		return nil, errors.Wrap(err, "failed to build request state machine")
	}
	return builder, nil
}

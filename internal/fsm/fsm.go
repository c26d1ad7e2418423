// Package fsm provides a generic finite state machine built on looplab/fsm.
// file: internal/fsm/fsm.go
package fsm

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	lfsm "github.com/looplab/fsm"

	"github.com/dkoosis/promptd/internal/logging"
)

// State represents a state in the FSM.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// TransitionAction is executed after a transition lands in its destination state.
// It receives the triggering event and the optional data passed to Transition.
type TransitionAction func(ctx context.Context, event Event, data interface{}) error

// GuardCondition is evaluated before a transition fires; returning false cancels it.
type GuardCondition func(ctx context.Context, event Event, data interface{}) bool

// Transition defines a transition rule between states. A single event may be
// declared from multiple source states, all leading to the same destination.
type Transition struct {
	From      []State
	To        State
	Event     Event
	Action    TransitionAction
	Condition GuardCondition
}

// FSM is the interface for the state machine wrapper. Configure transitions
// with AddTransition, then call Build before any other method.
type FSM interface {
	// AddTransition stores a transition definition for Build.
	AddTransition(transition Transition) FSM
	// Build finalizes the configuration and creates the underlying machine.
	Build() error
	// CurrentState returns the current state.
	CurrentState() State
	// CanTransition reports whether the event is defined for the current state.
	CanTransition(event Event) bool
	// Transition attempts to fire the event, running guards and actions.
	Transition(ctx context.Context, event Event, data interface{}) error
	// SetState forces the machine into the given state without firing callbacks.
	SetState(state State) error
	// Reset returns the machine to its initial state.
	Reset() error
}

// machine implements FSM on top of looplab/fsm.
type machine struct {
	initialState State
	logger       logging.Logger
	transitions  []Transition
	fsm          *lfsm.FSM // nil until Build.
	buildErr     error
	mu           sync.RWMutex
}

// NewFSM creates an FSM builder with the given initial state.
func NewFSM(initialState State, logger logging.Logger) FSM {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &machine{
		initialState: initialState,
		logger:       logger.WithField("component", "fsm"),
	}
}

// AddTransition stores a transition definition to be used during Build.
func (m *machine) AddTransition(t Transition) FSM {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fsm != nil {
		m.setBuildErr(errors.New("cannot AddTransition after Build"))
		return m
	}
	if len(t.From) == 0 {
		m.setBuildErr(errors.Newf("transition for event %q missing 'From' states", t.Event))
		return m
	}
	m.transitions = append(m.transitions, t)
	return m
}

// setBuildErr records the first configuration error. Caller holds the lock.
func (m *machine) setBuildErr(err error) {
	m.logger.Error("Invalid FSM configuration.", "error", err)
	if m.buildErr == nil {
		m.buildErr = err
	}
}

// Build finalizes the configuration and creates the underlying looplab/fsm instance.
// Calling Build again is a no-op returning the original result.
func (m *machine) Build() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fsm != nil || m.buildErr != nil {
		return m.buildErr
	}

	callbacks := make(lfsm.Callbacks)
	events := make(map[string]lfsm.EventDesc)

	for i, t := range m.transitions {
		name := string(t.Event)
		desc, ok := events[name]
		if !ok {
			desc = lfsm.EventDesc{Name: name, Dst: string(t.To)}
		} else if desc.Dst != string(t.To) {
			m.buildErr = errors.Newf(
				"conflicting destinations (%q and %q) for event %q; define separate events",
				desc.Dst, t.To, name)
			return m.buildErr
		}
		for _, s := range t.From {
			desc.Src = appendUnique(desc.Src, string(s))
		}
		events[name] = desc

		if t.Condition != nil {
			callbacks["before_"+name] = m.guardCallback(t)
		}
		if t.Action != nil {
			enter := "enter_" + string(t.To)
			callbacks[enter] = m.actionCallback(i, callbacks[enter])
		}
	}

	descs := make([]lfsm.EventDesc, 0, len(events))
	for _, desc := range events {
		descs = append(descs, desc)
	}

	m.fsm = lfsm.NewFSM(string(m.initialState), descs, callbacks)
	m.logger.Debug("FSM built.", "initial_state", m.initialState, "transitions", len(m.transitions))
	return nil
}

// guardCallback wraps a GuardCondition as a looplab "before" callback.
func (m *machine) guardCallback(t Transition) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		if e.Event != string(t.Event) || !containsState(t.From, e.Src) {
			return
		}
		if !t.Condition(ctx, t.Event, firstArg(e)) {
			e.Cancel(errors.Newf("guard for event %q from state %q failed", t.Event, e.Src))
		}
	}
}

// actionCallback wraps a TransitionAction as a looplab "enter" callback, chaining
// any callback previously registered for the same destination state.
func (m *machine) actionCallback(index int, next lfsm.Callback) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		m.mu.RLock()
		t := m.transitions[index]
		m.mu.RUnlock()

		if string(t.Event) == e.Event && containsState(t.From, e.Src) && string(t.To) == e.Dst {
			if err := t.Action(ctx, t.Event, firstArg(e)); err != nil {
				m.logger.Error("Transition action failed.", "event", t.Event, "to_state", t.To, "error", err)
			}
		}
		if next != nil {
			next(ctx, e)
		}
	}
}

// CurrentState returns the current state of the FSM. Requires Build.
func (m *machine) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fsm == nil {
		return ""
	}
	return State(m.fsm.Current())
}

// CanTransition reports whether the event can fire from the current state. Requires Build.
func (m *machine) CanTransition(event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fsm == nil {
		return false
	}
	return m.fsm.Can(string(event))
}

// Transition fires the event, returning looplab's error when the transition is
// undefined for the current state or a guard cancels it. Requires Build.
func (m *machine) Transition(ctx context.Context, event Event, data interface{}) error {
	m.mu.RLock()
	instance := m.fsm
	m.mu.RUnlock()
	if instance == nil {
		return errors.CombineErrors(errors.New("Transition called before Build"), m.buildErr)
	}

	var args []interface{}
	if data != nil {
		args = append(args, data)
	}
	if err := instance.Event(ctx, string(event), args...); err != nil {
		var canceled lfsm.CanceledError
		if errors.As(err, &canceled) {
			m.logger.Debug("Transition canceled by guard.", "event", event)
		}
		return err
	}
	return nil
}

// SetState forces the FSM into the given state without firing callbacks. Requires Build.
func (m *machine) SetState(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fsm == nil {
		return errors.CombineErrors(errors.New("SetState called before Build"), m.buildErr)
	}
	m.fsm.SetState(string(state))
	return nil
}

// Reset sets the state back to the initial state. Requires Build.
func (m *machine) Reset() error {
	return m.SetState(m.initialState)
}

// firstArg extracts the optional data argument from a looplab event.
func firstArg(e *lfsm.Event) interface{} {
	if len(e.Args) > 0 {
		return e.Args[0]
	}
	return nil
}

// containsState reports whether states contains the raw looplab state string.
func containsState(states []State, raw string) bool {
	for _, s := range states {
		if string(s) == raw {
			return true
		}
	}
	return false
}

// appendUnique appends value to slice unless already present.
func appendUnique(slice []string, value string) []string {
	for _, s := range slice {
		if s == value {
			return slice
		}
	}
	return append(slice, value)
}

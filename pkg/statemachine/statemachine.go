package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Guard evaluates whether a transition is allowed right now.
type Guard[S, E ~string] func(ctx context.Context, from S, event E, data any) bool

// Action runs before the state changes. Returning an error aborts the transition.
type Action[S, E ~string] func(ctx context.Context, from, to S, event E, data any) error

// Hook observes a completed transition. Hooks run after the machine's lock is
// released, so they may read Current.
type Hook[S, E ~string] func(ctx context.Context, from, to S, event E)

// Transition defines a state change triggered by an event.
type Transition[S, E ~string] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass
	Actions []Action[S, E] // executed in order before the state changes
}

// Machine is a thread-safe finite state machine over string-like state and
// event types. Lookups use map[from][event][]Transition; wildcard transitions
// registered with WithAnyTransition are consulted when no specific transition
// matches.
type Machine[S, E ~string] struct {
	initial     S
	current     S
	transitions map[S]map[E][]Transition[S, E]
	wildcard    map[E][]Transition[S, E]
	hooks       []Hook[S, E]
	mu          sync.RWMutex
}

// New creates a machine in the initial state and applies opts.
func New[S, E ~string](initial S, opts ...Option[S, E]) (*Machine[S, E], error) {
	if initial == "" {
		return nil, ErrInvalidState
	}

	m := &Machine[S, E]{
		initial:     initial,
		current:     initial,
		transitions: make(map[S]map[E][]Transition[S, E]),
		wildcard:    make(map[E][]Transition[S, E]),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// MustNew is New that panics on misconfiguration.
func MustNew[S, E ~string](initial S, opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// Current returns the active state.
func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in any of the given states.
func (m *Machine[S, E]) Is(states ...S) bool {
	cur := m.Current()
	for _, s := range states {
		if s == cur {
			return true
		}
	}
	return false
}

// AddTransition registers a transition. Several transitions may share a
// from/event pair; the first one whose guards pass wins.
func (m *Machine[S, E]) AddTransition(t Transition[S, E]) error {
	if t.From == "" || t.To == "" || t.Event == "" {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transitions[t.From]; !ok {
		m.transitions[t.From] = make(map[E][]Transition[S, E])
	}
	m.transitions[t.From][t.Event] = append(m.transitions[t.From][t.Event], t)
	return nil
}

// Fire applies event to the current state.
func (m *Machine[S, E]) Fire(ctx context.Context, event E, data any) error {
	if event == "" {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	from := m.current
	t, err := m.match(ctx, event, data)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	for _, action := range t.Actions {
		if err := action(ctx, from, t.To, event, data); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = t.To
	hooks := m.hooks
	m.mu.Unlock()

	for _, h := range hooks {
		h(ctx, from, t.To, event)
	}
	return nil
}

// CanFire reports whether Fire would find a transition whose guards pass.
func (m *Machine[S, E]) CanFire(ctx context.Context, event E, data any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.match(ctx, event, data)
	return err == nil
}

// Reset returns the machine to its initial state without running hooks.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func (m *Machine[S, E]) match(ctx context.Context, event E, data any) (Transition[S, E], error) {
	candidates := m.transitions[m.current][event]
	if len(candidates) == 0 {
		candidates = m.wildcard[event]
	}
	if len(candidates) == 0 {
		return Transition[S, E]{}, &ErrNoTransitionAvailable{State: string(m.current), Event: string(event)}
	}

	for _, t := range candidates {
		if guardsPass(ctx, t.Guards, m.current, event, data) {
			return t, nil
		}
	}
	return Transition[S, E]{}, &ErrTransitionRejected{State: string(m.current), Event: string(event)}
}

func guardsPass[S, E ~string](ctx context.Context, guards []Guard[S, E], from S, event E, data any) bool {
	for _, g := range guards {
		if g != nil && !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}

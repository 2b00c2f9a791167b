package statemachine

// Option configures a machine during construction.
type Option[S, E ~string] func(*Machine[S, E]) error

// TransitionOption configures a single transition.
type TransitionOption[S, E ~string] func(*Transition[S, E])

// WithTransition adds a transition from -> to on event.
func WithTransition[S, E ~string](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		t := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		return m.AddTransition(t)
	}
}

// WithTransitions adds the same transition from each of the given states.
func WithTransitions[S, E ~string](from []S, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for _, f := range from {
			if err := WithTransition(f, to, event, opts...)(m); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithAnyTransition adds a transition to `to` on event from any state that
// has no specific transition for that event.
func WithAnyTransition[S, E ~string](to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if to == "" || event == "" {
			return ErrInvalidTransition
		}
		t := Transition[S, E]{To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		m.wildcard[event] = append(m.wildcard[event], t)
		return nil
	}
}

// WithHook registers a hook called after every successful transition.
func WithHook[S, E ~string](h Hook[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if h != nil {
			m.hooks = append(m.hooks, h)
		}
		return nil
	}
}

// WithGuard adds a guard to a transition.
func WithGuard[S, E ~string](g Guard[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) {
		if g != nil {
			t.Guards = append(t.Guards, g)
		}
	}
}

// WithAction adds an action to a transition.
func WithAction[S, E ~string](a Action[S, E]) TransitionOption[S, E] {
	return func(t *Transition[S, E]) {
		if a != nil {
			t.Actions = append(t.Actions, a)
		}
	}
}

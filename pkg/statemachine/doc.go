// Package statemachine implements a small, thread-safe finite state machine
// over string-like state and event types.
//
//	type State string
//	type Event string
//
//	m := statemachine.MustNew[State, Event]("idle",
//		statemachine.WithTransition[State, Event]("idle", "running", "start"),
//		statemachine.WithTransition[State, Event]("running", "idle", "stop"),
//		statemachine.WithAnyTransition[State, Event]("idle", "reset"),
//	)
//	err := m.Fire(ctx, "start", nil)
//
// Guards decide whether a transition may proceed, actions run before the state
// changes and can abort it, hooks observe completed transitions. Errors
// distinguish an undefined transition (ErrNoTransitionAvailable) from one
// rejected by guards (ErrTransitionRejected).
package statemachine

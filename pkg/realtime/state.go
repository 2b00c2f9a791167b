package realtime

import "github.com/dmitrymomot/notifykit/pkg/statemachine"

// State is the connection lifecycle state. Exactly one is active at a time.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type trigger string

const (
	triggerConnect    trigger = "connect"
	triggerConnected  trigger = "connected"
	triggerDrop       trigger = "drop"
	triggerExhausted  trigger = "exhausted"
	triggerDisconnect trigger = "disconnect"
)

// StateChange is published to OnStateChange listeners.
type StateChange struct {
	From       State
	To         State
	UserID     string
	RetryCount int
}

func newMachine() *statemachine.Machine[State, trigger] {
	return statemachine.MustNew(StateDisconnected,
		statemachine.WithTransitions([]State{StateDisconnected, StateFailed, StateReconnecting}, StateConnecting, triggerConnect),
		statemachine.WithTransitions([]State{StateConnecting, StateReconnecting}, StateConnected, triggerConnected),
		statemachine.WithTransitions([]State{StateConnecting, StateConnected}, StateReconnecting, triggerDrop),
		statemachine.WithTransition(StateReconnecting, StateFailed, triggerExhausted),
		statemachine.WithAnyTransition(StateDisconnected, triggerDisconnect),
	)
}

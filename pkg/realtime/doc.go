// Package realtime maintains the live event connection for a signed-in user.
//
// A Manager drives a five-state lifecycle (disconnected, connecting,
// connected, reconnecting, failed) on top of a pluggable Transport. When the
// connection drops it schedules reconnect attempts with exponential backoff
// (1s doubling up to 30s) and gives up after five consecutive failures. Only
// one reconnect timer is ever pending.
//
// Once connected the Manager sends a subscribe message with the user id and
// interest channels, then hands every inbound domain event to a Dispatcher in
// arrival order.
//
//	transport, err := realtime.NewWebSocketTransport("wss://events.example.com/ws")
//	if err != nil {
//		return err
//	}
//	m := realtime.NewManager(transport, dispatcher, realtime.WithLogger(log))
//	m.OnStateChange(func(ctx context.Context, c realtime.StateChange) {
//		log.Info("state", "to", c.To)
//	})
//	if err := m.Connect(ctx, "user-1"); err != nil {
//		return err
//	}
//	defer m.Disconnect(ctx)
//
// Transport failures are never returned to callers. They are observable only
// through State and OnStateChange.
package realtime

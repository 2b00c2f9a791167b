// Package broadcast provides typed, synchronous publish/subscribe with
// explicit unsubscribe handles.
//
//	l := broadcast.NewListeners[Event]()
//	unsubscribe := l.Subscribe(func(ctx context.Context, e Event) {
//		render(e)
//	})
//	defer unsubscribe()
//
//	l.Publish(ctx, Event{...})
//
// Publish works on a snapshot of the registered handlers, isolates panics, and
// runs on the caller's goroutine, so values published from one goroutine are
// observed in order. Channel adapts a registry to a buffered channel for
// consumers that prefer a receive loop; slow consumers lose values instead of
// blocking the publisher.
package broadcast

package broadcast

import (
	"context"
	"sync"
)

// Channel subscribes to l and forwards values into a buffered channel.
//
// Sends never block the publisher: when the buffer is full the value is
// dropped for this consumer. The subscription ends and the channel is closed
// when ctx is canceled.
func Channel[T any](ctx context.Context, l *Listeners[T], bufferSize int) <-chan T {
	ch := make(chan T, max(bufferSize, 1))

	var (
		mu     sync.Mutex
		closed bool
	)

	unsubscribe := l.Subscribe(func(_ context.Context, v T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- v:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}

// Package async runs functions in the background and exposes their results
// as typed futures.
//
// The pipeline uses it at startup to load persisted history and preferences
// and to initialise background delivery concurrently, then waits for all of
// them before connecting:
//
//	history := async.Go(ctx, func(ctx context.Context) (int, error) {
//	    return h.Load(ctx), nil
//	})
//	if _, err := history.AwaitContext(ctx); err != nil {
//	    return err
//	}
//
// A Future completes exactly once. Cancellation of the context passed to Go
// is visible to the function; cancellation of the context passed to
// AwaitContext only abandons the wait.
package async

package broadcast

import "errors"

// ErrHandlerPanic wraps the value recovered from a panicking handler.
var ErrHandlerPanic = errors.New("broadcast: handler panicked")

package typedevent

import (
	"errors"
	"fmt"
)

// Sentinel errors for event construction and attachment.
var (
	// ErrCapabilityUnavailable indicates the runtime cannot report when a weakly
	// held handler has been reclaimed. Weak events cannot be built without it.
	ErrCapabilityUnavailable = errors.New("weak reference finalization is not available")

	// ErrNilHandler indicates Attach was called with a nil handler or a handler
	// wrapping a nil function.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// HandlerError reports that a handler failed during an invocation.
// It is the only error type surfaced by Invoke and InvokeAsync.
type HandlerError struct {
	// EventName is the name of the event being invoked (empty for the
	// free-standing InvokeHandlers functions).
	EventName string
	// Handler is the handler's name, or "anonymous".
	Handler string
	// Index is the handler's position in the invocation snapshot.
	Index int
	// Mode is how the handler was invoked.
	Mode InvocationMode
	// Err is what the handler returned, yielded, or panicked with.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.EventName != "" {
		return fmt.Sprintf("event %s: handler %s (#%d, %s): %v", e.EventName, e.Handler, e.Index, e.Mode, e.Err)
	}
	return fmt.Sprintf("handler %s (#%d, %s): %v", e.Handler, e.Index, e.Mode, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a handler.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

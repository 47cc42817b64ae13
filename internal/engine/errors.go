package engine

import "errors"

// Error kinds returned by the engine (spec.md §7). These are sentinel
// values; wrap with fmt.Errorf("...: %w", ...) where a cause needs to be
// attached, and use errors.Is against these values to classify a failure.
var (
	// ErrSendFailed indicates a Context.Send could not complete because
	// stage-1 is closed (the broker has terminated).
	ErrSendFailed = errors.New("engine: send failed, broker terminated")

	// ErrOverflowClosed indicates this actor's mailbox was closed by the
	// broker because a Fail-policy subscription overflowed.
	ErrOverflowClosed = errors.New("engine: mailbox closed by overflow policy")

	// ErrDuplicateName indicates Supervisor.AddActor was called with a
	// name already registered on this supervisor.
	ErrDuplicateName = errors.New("engine: duplicate actor name")

	// ErrInvalidState indicates a lifecycle operation was attempted in a
	// Supervisor state that rejects it.
	ErrInvalidState = errors.New("engine: invalid supervisor state for this operation")
)

// HandlerError wraps a failure returned by an actor's HandleEvent hook,
// corresponding to spec.md's HandlerFailed(cause) kind. Step has no error
// result, so it never produces a HandlerError.
type HandlerError struct {
	Cause error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "engine: handler failed: " + e.Cause.Error()
}

// Unwrap enables errors.Is/errors.As against the wrapped cause.
func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// NewHandlerError wraps cause as a HandlerError. Returns nil if cause is nil.
func NewHandlerError(cause error) error {
	if cause == nil {
		return nil
	}
	return &HandlerError{Cause: cause}
}

// ExternalError wraps a failure originating outside the engine (e.g. an
// actor-visible serialization error), corresponding to spec.md's
// External(cause) kind. The engine itself never constructs this; it exists
// so actor implementations have a conventional way to report such failures
// through OnError/HandleEvent without inventing their own error type.
type ExternalError struct {
	Cause error
}

// Error implements the error interface.
func (e *ExternalError) Error() string {
	return "engine: external error: " + e.Cause.Error()
}

// Unwrap enables errors.Is/errors.As against the wrapped cause.
func (e *ExternalError) Unwrap() error {
	return e.Cause
}

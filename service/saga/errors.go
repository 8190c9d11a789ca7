package saga

import "errors"

// Business outcomes of event handling. These are deliberately not transport
// failures: with at-least-once delivery a duplicate or stale event is a
// normal occurrence, so the router logs and settles them instead of forcing a
// redelivery.

var (
	// ErrUnknownInstance means the event references a correlation id no
	// instance was ever created for.
	ErrUnknownInstance = errors.New("saga: unknown instance")

	// ErrUnknownProcess means a request referenced a process definition that
	// cannot be resolved.
	ErrUnknownProcess = errors.New("saga: unknown process")

	// ErrInvalidTransition means the event is inapplicable to the instance's
	// current status, e.g. approving a cancelled instance.
	ErrInvalidTransition = errors.New("saga: invalid transition")

	// ErrInvalidMessage means the envelope is malformed and can never be
	// applied, no matter how often it is redelivered.
	ErrInvalidMessage = errors.New("saga: invalid message")

	// ErrPersistenceConflict is surfaced after the bounded save-retry budget
	// is exhausted; unlike the errors above it is transient and worth a
	// redelivery.
	ErrPersistenceConflict = errors.New("saga: persistence conflict")
)

// Package fault defines the error taxonomy shared by all services.
// Every guard violation and external-dependency failure is classified
// with a stable Kind so callers and the HTTP layer can react without
// string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindInvalid marks malformed or out-of-range input.
	KindInvalid Kind = "invalid"
	// KindNotFound marks a missing session, visitor, sequence or enrollment.
	KindNotFound Kind = "not_found"
	// KindInvalidTransition marks a disallowed lifecycle transition.
	KindInvalidTransition Kind = "invalid_state_transition"
	// KindAlreadyInState marks a no-op transition into the current state.
	KindAlreadyInState Kind = "already_in_state"
	// KindPrecondition marks an operation refused by a lifecycle guard
	// other than the status transition table.
	KindPrecondition Kind = "precondition_failed"
	// KindDuplicate marks a visitor email collision within a session.
	KindDuplicate Kind = "duplicate_visitor"
	// KindSessionNotActive marks a check-in against a non-active session.
	KindSessionNotActive Kind = "session_not_active"
	// KindSequenceInactive marks enrollment into an inactive sequence.
	KindSequenceInactive Kind = "sequence_inactive"
	// KindAlreadyEnrolled marks a second non-completed enrollment for the
	// same visitor and sequence.
	KindAlreadyEnrolled Kind = "already_enrolled"
	// KindGenerationFailed marks content generator exhaustion. Retryable.
	KindGenerationFailed Kind = "generation_failed"
	// KindDeliveryFailed marks notifier exhaustion. Retryable.
	KindDeliveryFailed Kind = "delivery_failed"
	// KindConflict marks an optimistic-lock conflict. Callers should
	// re-read and retry the whole operation.
	KindConflict Kind = "concurrent_modification"
	// KindInternal is everything else.
	KindInternal Kind = "internal"
)

// Error carries a Kind, a human-readable message, and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given kind wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the error is worth retrying as a whole
// operation: external-dependency exhaustion and lost optimistic-lock races.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindGenerationFailed, KindDeliveryFailed, KindConflict:
		return true
	}
	return false
}

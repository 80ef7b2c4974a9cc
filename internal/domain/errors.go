package domain

import "github.com/cockroachdb/errors"

// Reason enumerates the validation rejection reasons listed in §6. A
// rejected command records its Reason and has no state effect.
type Reason string

const (
	UnknownSymbol        Reason = "UnknownSymbol"
	SymbolClosed         Reason = "SymbolClosed"
	BadScale             Reason = "BadScale"
	OrderIDExists        Reason = "OrderIdExists"
	OrderIDUnknown       Reason = "OrderIdUnknown"
	NotOwner             Reason = "NotOwner"
	InsufficientBalance  Reason = "InsufficientBalance"
	BelowMinimum         Reason = "BelowMinimum"
	MarketOrdersDisabled Reason = "MarketOrdersDisabled"
	OverflowDecimal      Reason = "OverflowDecimal"
	DuplicateCurrency    Reason = "DuplicateCurrency"
)

// ValidationError rejects a command without mutating state. It is a
// plain local error: the sequencer records it on the status column and
// moves on to the next event_id.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

// NewValidationError builds a ValidationError with an optional detail
// message.
func NewValidationError(reason Reason, detail string) *ValidationError {
	return &ValidationError{Reason: reason, Detail: detail}
}

// ErrBackpressure is returned by the ingress queue when it is full.
// The caller retries; it never reaches the sequencer.
var ErrBackpressure = errors.New("galois: backpressure, ingress queue full")

// InvariantViolation marks a fatal bug-or-corruption condition: the
// matcher/clearer found committed state it cannot reconcile with its
// own preconditions. The engine halts after writing a diagnostic
// snapshot. Always constructed with errors.Wrap/Newf so it carries a
// stack trace into the diagnostic dump.
type InvariantViolation struct {
	cause error
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.cause.Error() }
func (e *InvariantViolation) Unwrap() error { return e.cause }

// NewInvariantViolation wraps cause as a fatal InvariantViolation.
func NewInvariantViolation(cause error) *InvariantViolation {
	return &InvariantViolation{cause: errors.WithStackDepth(cause, 1)}
}

// PersistenceError marks a fatal failure writing to the KV store. Like
// InvariantViolation it halts the engine; recovery happens on restart.
type PersistenceError struct {
	cause error
}

func (e *PersistenceError) Error() string { return "persistence error: " + e.cause.Error() }
func (e *PersistenceError) Unwrap() error { return e.cause }

// NewPersistenceError wraps cause as a fatal PersistenceError.
func NewPersistenceError(cause error) *PersistenceError {
	return &PersistenceError{cause: errors.WithStackDepth(cause, 1)}
}

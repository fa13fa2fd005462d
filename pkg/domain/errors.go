package domain

import (
	"errors"
	"fmt"
)

// InvalidTransactionError rejects a transaction for violating a validation
// rule. The whole transaction is discarded with zero state mutation and the
// reason string is surfaced verbatim to the submitter. Never retried
// automatically.
type InvalidTransactionError struct {
	Reason string
}

func (e InvalidTransactionError) Error() string { return e.Reason }

// Invalidf builds an InvalidTransactionError with a formatted reason.
func Invalidf(format string, args ...any) error {
	return InvalidTransactionError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalid reports whether err is a validation rejection rather than an
// internal fault.
func IsInvalid(err error) bool {
	var inv InvalidTransactionError
	return errors.As(err, &inv)
}

// InternalError indicates ledger corruption or a version mismatch: corrupt
// container bytes, an unknown message type, a state invariant violation.
// Distinct from validation rejections so operators can tell "your request was
// bad" from "the system is broken".
type InternalError struct {
	Op  string
	Err error
}

func (e InternalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("internal: %s", e.Op)
	}
	return fmt.Sprintf("internal: %s: %v", e.Op, e.Err)
}

func (e InternalError) Unwrap() error { return e.Err }

// Internalf builds an InternalError wrapping err under a described operation.
func Internalf(err error, format string, args ...any) error {
	return InternalError{Op: fmt.Sprintf(format, args...), Err: err}
}

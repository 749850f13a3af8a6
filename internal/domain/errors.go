// Package domain holds shared value types and the error taxonomy used
// across the pipeline modules.
package domain

import (
	"errors"
	"fmt"
)

// DataAccessError indicates the backing store was unreachable or a query
// could not execute. Fatal to the current (manager, period) pair: the
// batch logs it and continues with the next pair.
type DataAccessError struct {
	Op  string // operation that failed, e.g. "load snapshot"
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed during %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

// NewDataAccessError wraps err as a DataAccessError for the given operation.
func NewDataAccessError(op string, err error) error {
	return &DataAccessError{Op: op, Err: err}
}

// IsDataAccess reports whether err is (or wraps) a DataAccessError.
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}

// InvariantViolation indicates an internal self-check failed. These must
// never occur in correct operation and are surfaced loudly rather than
// skipped.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}

// NewInvariantViolation creates an InvariantViolation with a formatted message.
func NewInvariantViolation(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation reports whether err is (or wraps) an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

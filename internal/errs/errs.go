// Package errs defines the error taxonomy shared by the sync core.
//
// ValidationError never reaches the network, NetworkError covers transport
// and HTTP failures including timeouts, InvariantError marks data that
// contradicts an entity invariant and is surfaced rather than silently
// patched.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError reports bad local input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NetworkError reports a transport or HTTP failure.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("network: %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Network wraps a transport-level failure.
func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// NetworkStatus reports a non-success HTTP status.
func NetworkStatus(op string, status int) error {
	return &NetworkError{Op: op, Status: status}
}

// InvariantError reports data whose shape contradicts an entity invariant.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

// Invariant builds an InvariantError.
func Invariant(detail string) error {
	return &InvariantError{Detail: detail}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// IsInvariant reports whether err is an InvariantError.
func IsInvariant(err error) bool {
	var i *InvariantError
	return errors.As(err, &i)
}

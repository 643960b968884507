package errors

import (
	"fmt"

	"github.com/pestofarm/storefront/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails or is missing
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict is returned when there's a conflict (e.g., idempotency)
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when an invalid state transition is attempted
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrPrecondition is returned when a checkout step is attempted before its
// predecessor data exists. Stage is where the caller should go back to.
type ErrPrecondition struct {
	Stage   domain.CheckoutStage
	Missing string
}

func (e *ErrPrecondition) Error() string {
	return fmt.Sprintf("checkout precondition failed: %s missing (back to %s)", e.Missing, e.Stage)
}

// ErrBackend is returned when the remote backend answered with a non-2xx status.
// JSON is set when the body was a JSON document, i.e. a deliberate rejection
// rather than a proxy or server error page.
type ErrBackend struct {
	StatusCode int
	Message    string
	JSON       bool
}

func (e *ErrBackend) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// ErrBackendUnavailable is returned when the backend cannot be reached and no
// local fallback is allowed
type ErrBackendUnavailable struct {
	Operation string
	Err       error
}

func (e *ErrBackendUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend unavailable for %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("backend unavailable for %s", e.Operation)
}

func (e *ErrBackendUnavailable) Unwrap() error {
	return e.Err
}

// ErrQuotaExceeded is returned by a snapshot store when a value is over its size limit
type ErrQuotaExceeded struct {
	Key   string
	Size  int
	Limit int
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d bytes over limit %d", e.Key, e.Size, e.Limit)
}

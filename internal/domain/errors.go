package domain

import "fmt"

// Error types for consistent error handling across the billing service.
// Each type maps to a distinct HTTP status and error code in the handler layer.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input or a forbidden transition).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrDataIntegrity indicates malformed stored data found during evaluation
// (unparseable dates, negative amounts). The record is skipped, never corrected.
type ErrDataIntegrity struct {
	ClientID string
	Field    string
	Value    string
	Reason   string
}

func (e *ErrDataIntegrity) Error() string {
	return fmt.Sprintf("data integrity error on client %s field '%s' (%q): %s", e.ClientID, e.Field, e.Value, e.Reason)
}

// ErrInvalidAmount indicates a non-positive or over-limit amount given to a ledger operation.
type ErrInvalidAmount struct {
	Amount Money
	Limit  Money
	Reason string
}

func (e *ErrInvalidAmount) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("invalid amount %s (limit %s): %s", e.Amount, e.Limit, e.Reason)
	}
	return fmt.Sprintf("invalid amount %s: %s", e.Amount, e.Reason)
}

// ErrConstraintViolation indicates the store rejected a write (check, unique or FK constraint).
type ErrConstraintViolation struct {
	Resource string
	Detail   string
}

func (e *ErrConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation on %s: %s", e.Resource, e.Detail)
}

// ErrDeliveryInconsistency indicates the external send and its audit record disagree:
// the message was handed off but could not be logged, or the other way round.
// It must reach an operator; the send is never rolled back.
type ErrDeliveryInconsistency struct {
	ClientID string
	Channel  Channel
	Sent     bool
	Err      error
}

func (e *ErrDeliveryInconsistency) Error() string {
	if e.Sent {
		return fmt.Sprintf("message to client %s sent via %s but audit log failed: %v", e.ClientID, e.Channel, e.Err)
	}
	return fmt.Sprintf("message to client %s via %s not sent and audit log failed: %v", e.ClientID, e.Channel, e.Err)
}

func (e *ErrDeliveryInconsistency) Unwrap() error {
	return e.Err
}

// ErrConflict indicates a resource already exists (e.g. duplicate phone number).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

package domain

import "fmt"

// Error types for consistent error handling across the terminal.

// ============================================================
// Operation validation
// ============================================================

// Limit types reported by ErrLimitExceeded.
const (
	LimitPerTransaction = "per_transaction"
	LimitDaily          = "daily"
)

// ErrInsufficientFunds indicates the balance cannot cover amount plus fee.
type ErrInsufficientFunds struct {
	Available int64
	Required  int64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%d required=%d", e.Available, e.Required)
}

// ErrLimitExceeded indicates a per-transaction or daily limit was exceeded.
type ErrLimitExceeded struct {
	LimitType string
	Limit     int64
	Current   int64
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("limit exceeded [%s]: limit=%d requested=%d", e.LimitType, e.Limit, e.Current)
}

// ErrInsufficientNotes indicates the terminal cannot dispense the requested notes.
// Denomination is zero when the amount cannot be composed at all.
type ErrInsufficientNotes struct {
	Denomination Denomination
}

func (e *ErrInsufficientNotes) Error() string {
	if e.Denomination == 0 {
		return "insufficient notes: amount cannot be dispensed with available notes"
	}
	return fmt.Sprintf("insufficient notes of denomination %d", e.Denomination)
}

// ErrInvalidAmount indicates a non-positive amount or one that is not a
// multiple of the smallest denomination.
type ErrInvalidAmount struct {
	Amount int64
	Reason string
}

func (e *ErrInvalidAmount) Error() string {
	return fmt.Sprintf("invalid amount %d: %s", e.Amount, e.Reason)
}

// ============================================================
// PIN challenge
// ============================================================

// ErrPinMismatch indicates a wrong PIN with attempts still left.
type ErrPinMismatch struct {
	AttemptsRemaining int
}

func (e *ErrPinMismatch) Error() string {
	return fmt.Sprintf("incorrect PIN: %d attempts remaining", e.AttemptsRemaining)
}

// ErrLockedOut indicates the attempt limit was reached and the session is closed.
type ErrLockedOut struct{}

func (e *ErrLockedOut) Error() string {
	return "too many incorrect PIN attempts: session locked"
}

// ErrOperationPending indicates an operation is already awaiting PIN verification.
type ErrOperationPending struct {
	Kind OperationKind
}

func (e *ErrOperationPending) Error() string {
	return fmt.Sprintf("operation already pending: %s", e.Kind)
}

// ErrNoPendingOperation indicates there is nothing to verify or cancel.
type ErrNoPendingOperation struct{}

func (e *ErrNoPendingOperation) Error() string {
	return "no pending operation"
}

// ErrSessionClosed indicates the session was locked out or logged out.
type ErrSessionClosed struct{}

func (e *ErrSessionClosed) Error() string {
	return "session closed"
}

// ============================================================
// Input, access & infrastructure
// ============================================================

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrForbidden indicates the session lacks permission for the action.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate username).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
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

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

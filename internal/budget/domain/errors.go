package budget

import (
	"errors"
	"strings"
)

var (
	// ErrPermission is matched by every *PermissionError.
	ErrPermission = errors.New("budget: permission denied")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("budget: validation failed")
	// ErrPrecondition is matched by every *PreconditionError.
	ErrPrecondition = errors.New("budget: precondition failed")

	// ErrGrantNotFound is returned when a grant is not found.
	ErrGrantNotFound = errors.New("budget: grant not found")
	// ErrLineNotFound is returned when a budget line is not found in its grant.
	ErrLineNotFound = errors.New("budget: budget line not found")
	// ErrSubLineNotFound is returned when a sub budget line is not found in its line.
	ErrSubLineNotFound = errors.New("budget: sub budget line not found")
	// ErrEngagementNotFound is returned when an engagement is not found.
	ErrEngagementNotFound = errors.New("budget: engagement not found")
	// ErrPaymentNotFound is returned when a payment is not found.
	ErrPaymentNotFound = errors.New("budget: payment not found")
	// ErrNilGrant is returned when saving a nil grant.
	ErrNilGrant = errors.New("budget: nil grant")
	// ErrNilEngagement is returned when saving a nil engagement.
	ErrNilEngagement = errors.New("budget: nil engagement")
	// ErrNilPayment is returned when saving a nil payment.
	ErrNilPayment = errors.New("budget: nil payment")
)

// PermissionError reports a missing module/action capability.
type PermissionError struct {
	Module string
	Action string
}

func (e *PermissionError) Error() string {
	if e.Action == "" {
		return "budget: no access to module " + e.Module
	}
	return "budget: permission denied: " + e.Module + "/" + e.Action
}

// Is matches ErrPermission.
func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// ValidationError lists missing or invalid input fields.
type ValidationError struct {
	Fields []string
	Reason string
}

// NewValidationError builds a ValidationError for the given fields.
func NewValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}

func (e *ValidationError) Error() string {
	msg := "budget: validation failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Fields) > 0 {
		msg += " [" + strings.Join(e.Fields, ", ") + "]"
	}
	return msg
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PreconditionError reports an operation attempted in a state that forbids it.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "budget: precondition failed: " + e.Reason }

// Is matches ErrPrecondition.
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

func precondition(reason string) error { return &PreconditionError{Reason: reason} }

package payroll

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound         = errors.New("payroll run not found")
	ErrItemNotFound        = errors.New("payroll item not found")
	ErrDuplicateRun        = errors.New("payroll run already exists for this period")
	ErrRunLocked           = errors.New("payroll run is locked, items can only be edited while the run is DRAFT")
	ErrInvalidTransition   = errors.New("invalid payroll run status transition")
	ErrUnauthorized        = errors.New("caller lacks the required payroll capability")
	ErrNoEligibleEmployees = errors.New("no active employees eligible for payroll")
	ErrPersistence         = errors.New("payroll storage unavailable")
)

// PersistenceError wraps a store failure. It matches ErrPersistence with
// errors.Is and is safe for the caller to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence.Error(), e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// TransitionError reports an illegal lifecycle move. It matches ErrInvalidTransition.
type TransitionError struct {
	From RunStatus
	To   RunStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition.Error(), e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

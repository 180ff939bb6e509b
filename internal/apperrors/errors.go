// Package apperrors defines the error kinds shared by the ledger core and the
// service layer. Callers wrap them with fmt.Errorf("%w: ...") and inspect them
// with errors.Is.
package apperrors

import "errors"

var (
	// ErrNotFound indicates that a requested resource could not be found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that input data failed validation checks.
	ErrValidation = errors.New("validation error")

	// ErrForbidden indicates the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates the resource already exists or is in a state
	// that does not allow the operation.
	ErrConflict = errors.New("conflict")

	// ErrZeroParticipants is returned for an equal split with no members and no pending participants.
	ErrZeroParticipants = errors.New("equal split requires at least one participant")

	// ErrInvalidSplit is returned when custom shares are missing or do not sum to the expense amount.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrIntegrityViolation marks a should-never-happen inconsistency detected
	// by the ledger core. The computation is aborted instead of returning
	// financially incorrect data.
	ErrIntegrityViolation = errors.New("ledger integrity violation")
)

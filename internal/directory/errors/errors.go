package errors

import (
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = fmt.Errorf("not found")
	ErrConflict           = fmt.Errorf("conflict")
	ErrDuplicateTaxID     = fmt.Errorf("%w: duplicate tax id", ErrConflict)
	ErrBackendUnavailable = fmt.Errorf("backend unavailable")
	ErrPartialFailure     = fmt.Errorf("partial failure")
	ErrInvalidInput       = fmt.Errorf("invalid input")
)

// PartialFailureError reports a multi-step write that stopped halfway and
// could not be rolled back. CompanyID names the record left behind.
type PartialFailureError struct {
	CompanyID uuid.UUID
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: company %s left without deed history: %v", e.CompanyID, e.Err)
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

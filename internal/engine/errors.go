package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/flagsearch/internal/ir"
)

// SearchError is a fatal search failure.
//
// Every SearchError caused by an evaluation names the run and the exact
// flag string, so the failing build can be reproduced by hand.
type SearchError struct {
	// Code identifies the error category.
	Code SearchErrorCode

	// RunID and Kind identify the failing run. Kind is empty when the
	// failure is not tied to an evaluation.
	RunID int64
	Kind  ir.RunKind

	// Flags is the complete flag string of the failing run.
	Flags string

	Err error
}

// SearchErrorCode categorizes search failures.
type SearchErrorCode string

const (
	// ErrCodePrecondition indicates the environment check failed before
	// any evaluation ran.
	ErrCodePrecondition SearchErrorCode = "PRECONDITION_FAILED"

	// ErrCodeCalibration indicates the O3 or Os reference build failed.
	ErrCodeCalibration SearchErrorCode = "CALIBRATION_FAILED"

	// ErrCodeBaseline indicates a base configuration evaluation failed.
	ErrCodeBaseline SearchErrorCode = "BASELINE_FAILED"

	// ErrCodeCandidate indicates a candidate evaluation failed.
	ErrCodeCandidate SearchErrorCode = "CANDIDATE_FAILED"

	// ErrCodeConfirm indicates a confirmation re-evaluation failed.
	ErrCodeConfirm SearchErrorCode = "CONFIRM_FAILED"

	// ErrCodePersist indicates a run record could not be written to the sink.
	ErrCodePersist SearchErrorCode = "PERSIST_FAILED"
)

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: run %s (flags %q): %v", e.Code, ir.RunLabel(e.Kind, e.RunID), e.Flags, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the first SearchError in err's tree, or ""
// if there is none.
func ErrorCode(err error) SearchErrorCode {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCandidateError reports whether err is a candidate evaluation failure.
func IsCandidateError(err error) bool {
	return ErrorCode(err) == ErrCodeCandidate
}

func runError(code SearchErrorCode, req ir.Request, err error) *SearchError {
	return &SearchError{
		Code:  code,
		RunID: req.RunID,
		Kind:  req.Kind,
		Flags: req.Flags,
		Err:   err,
	}
}

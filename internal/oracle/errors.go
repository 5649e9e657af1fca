package oracle

import (
	"errors"
	"fmt"
)

// ErrDuplicateResult reports a measurement table with two results for the
// same module. The whole evaluation is untrustworthy when this happens.
var ErrDuplicateResult = errors.New("duplicate result for module")

// ErrNoResults reports a measurement table without any module result.
var ErrNoResults = errors.New("no module results")

// Evaluation stages named in EvalError.
const (
	StagePrepare = "prepare"
	StageBuild   = "build"
	StageMeasure = "measure"
	StageResults = "results"
)

// EvalError describes a failed evaluation.
type EvalError struct {
	// Label is the run identity, e.g. "test-12".
	Label string
	// Stage is the step that failed.
	Stage string
	// Log is the log file of the failing step, if any.
	Log string
	Err error
}

func (e *EvalError) Error() string {
	if e.Log != "" {
		return fmt.Sprintf("%s: %s failed (log: %s): %v", e.Label, e.Stage, e.Log, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Label, e.Stage, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsDuplicateResult reports whether err stems from a duplicate module result.
func IsDuplicateResult(err error) bool {
	return errors.Is(err, ErrDuplicateResult)
}

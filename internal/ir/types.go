package ir

import (
	"fmt"
	"strconv"
)

// Score is the aggregate measurement of one build. Lower is better.
//
// A non-positive score is the failure sentinel: it means the configuration
// could not be built or measured and never counts as a measurement.
type Score float64

// FailedScore is the canonical failure sentinel.
const FailedScore Score = 0

// Valid reports whether s is a usable measurement.
func (s Score) Valid() bool {
	return s > 0
}

// Less reports whether s is a strict improvement over other.
func (s Score) Less(other Score) bool {
	return s < other
}

// String renders the score in shortest round-trip form.
func (s Score) String() string {
	return strconv.FormatFloat(float64(s), 'g', -1, 64)
}

// RunKind classifies a run record.
type RunKind string

const (
	// RunKindO3 is the fully optimized calibration build.
	RunKindO3 RunKind = "o3"
	// RunKindOs is the size optimized calibration build.
	RunKindOs RunKind = "os"
	// RunKindBase is a measurement of the current base configuration.
	RunKindBase RunKind = "base"
	// RunKindTest is a measurement of a single-flag-disabled candidate.
	RunKindTest RunKind = "test"
)

// Valid reports whether k is one of the known run kinds.
func (k RunKind) Valid() bool {
	switch k {
	case RunKindO3, RunKindOs, RunKindBase, RunKindTest:
		return true
	}
	return false
}

// ParseRunKind converts a stored kind back to a RunKind.
func ParseRunKind(s string) (RunKind, error) {
	k := RunKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown run kind %q", s)
	}
	return k, nil
}

// RunRecord is the outcome of one oracle evaluation.
// Created once per evaluation, never mutated afterwards.
type RunRecord struct {
	RunID      int64   `json:"run_id"`
	Kind       RunKind `json:"kind"`
	Flags      string  `json:"flags"`
	ConfigHash string  `json:"config_hash"`
	Score      Score   `json:"score"`
	// Failure holds the diagnostic for a failed evaluation; empty on success.
	Failure string `json:"failure,omitempty"`
}

// Label is the identity-scoped name of a run, e.g. "test-12".
// Build and install directories are named after it.
func (r RunRecord) Label() string {
	return RunLabel(r.Kind, r.RunID)
}

// Failed reports whether the record holds the failure sentinel.
func (r RunRecord) Failed() bool {
	return !r.Score.Valid()
}

// RunLabel formats the label shared by run records and their directories.
func RunLabel(kind RunKind, runID int64) string {
	return fmt.Sprintf("%s-%d", kind, runID)
}

// Request asks an oracle to build and measure one configuration.
type Request struct {
	RunID int64
	Kind  RunKind
	// Flags is the complete flag string passed to the compiler.
	Flags string
}

// Label is the identity-scoped name of the evaluation.
func (r Request) Label() string {
	return RunLabel(r.Kind, r.RunID)
}

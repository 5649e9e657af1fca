package harness

import (
	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/ir"
	"github.com/roach88/flagsearch/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates that every expectation held.
	// True when the scenario has no expectations.
	Pass bool `json:"pass"`

	// SessionID is the store session the runs were written to.
	SessionID string `json:"session_id"`

	Status store.SessionStatus `json:"status"`

	// Search is the converged result; nil if the search failed.
	Search *engine.Result `json:"-"`

	// Err is the search error; nil if the search converged.
	Err error `json:"-"`

	// Runs are the run records read back from the store.
	Runs []ir.RunRecord `json:"runs"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []ir.RunRecord{},
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/ir"
	"github.com/roach88/flagsearch/internal/store"
)

// ExpectationError is a failed expectation.
// It includes the run list to help debug the failure.
type ExpectationError struct {
	Field    string
	Expected string
	Actual   string
	Runs     []ir.RunRecord
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nRuns:\n")
	for _, r := range e.Runs {
		fmt.Fprintf(&buf, "  %s %s %s\n", r.Label(), r.Score, r.Flags)
	}

	return buf.String()
}

// EvaluateExpectations checks a result against exp and returns one message
// per failed expectation. It also checks that the stored runs match the
// engine's ledger exactly.
func EvaluateExpectations(result *Result, eng *engine.Engine, exp *Expect) []string {
	var errs []string
	fail := func(field string, expected, actual any) {
		errs = append(errs, (&ExpectationError{
			Field:    field,
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(actual),
			Runs:     result.Runs,
		}).Error())
	}

	if ledger := eng.Ledger().Records(); !reflect.DeepEqual(ledger, result.Runs) {
		fail("stored runs", fmt.Sprintf("%d ledger records", len(ledger)), fmt.Sprintf("%d stored records", len(result.Runs)))
	}

	if exp == nil {
		return errs
	}

	if string(result.Status) != exp.Status {
		detail := string(result.Status)
		if result.Err != nil {
			detail += ": " + result.Err.Error()
		}
		fail("status", exp.Status, detail)
		return errs
	}

	if exp.Runs > 0 && len(result.Runs) != exp.Runs {
		fail("runs", exp.Runs, len(result.Runs))
	}

	if result.Status == store.StatusFailed {
		if exp.ErrorCode != "" {
			if got := engine.ErrorCode(result.Err); got != engine.SearchErrorCode(exp.ErrorCode) {
				fail("error_code", exp.ErrorCode, got)
			}
		}
		for _, sub := range exp.ErrorContains {
			if !strings.Contains(result.Err.Error(), sub) {
				fail("error_contains", sub, result.Err.Error())
			}
		}
		return errs
	}

	search := result.Search
	if exp.Final != nil && !reflect.DeepEqual(search.Final.Enabled(), exp.Final) {
		fail("final", exp.Final, search.Final.Enabled())
	}
	if exp.FinalScore != 0 && search.FinalScore != ir.Score(exp.FinalScore) {
		fail("final_score", exp.FinalScore, search.FinalScore)
	}
	if exp.Removed != nil && !reflect.DeepEqual(nonNil(search.Removed), exp.Removed) {
		fail("removed", exp.Removed, search.Removed)
	}
	if exp.Rounds != 0 && search.Rounds != exp.Rounds {
		fail("rounds", exp.Rounds, search.Rounds)
	}
	return errs
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

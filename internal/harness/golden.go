package harness

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/ir"
	"github.com/roach88/flagsearch/internal/ledger"
)

// Snapshot captures everything a scenario run decided.
// It is serialized as canonical JSON for deterministic comparison.
type Snapshot struct {
	Scenario  string
	Status    string
	ErrorCode string
	Runs      []ir.RunRecord
	// Set for converged searches only.
	FinalFlags string
	Removed    []string
	Rounds     int
	// Report holds the ratio report lines when the ledger has every
	// reference measurement.
	Report []string
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(name string, result *Result) (*Snapshot, error) {
	snap := &Snapshot{
		Scenario: name,
		Status:   string(result.Status),
		Runs:     result.Runs,
	}
	if result.Err != nil {
		snap.ErrorCode = engineCode(result.Err)
	}
	if s := result.Search; s != nil {
		snap.FinalFlags = s.FinalFlags
		snap.Removed = s.Removed
		snap.Rounds = s.Rounds
	}

	rep, err := ledger.FromRecords(result.Runs).Report()
	if err == nil {
		var buf bytes.Buffer
		if err := rep.WriteCSV(&buf); err != nil {
			return nil, err
		}
		snap.Report = strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	}
	return snap, nil
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. Scores are rendered as strings: canonical JSON has no floats.
func (s *Snapshot) toCanonicalMap() map[string]any {
	runs := make([]any, len(s.Runs))
	for i, r := range s.Runs {
		run := map[string]any{
			"run":   r.Label(),
			"flags": r.Flags,
			"score": r.Score.String(),
		}
		if r.Failure != "" {
			run["failure"] = r.Failure
		}
		runs[i] = run
	}

	m := map[string]any{
		"scenario": s.Scenario,
		"status":   s.Status,
		"runs":     runs,
	}
	if s.ErrorCode != "" {
		m["error_code"] = s.ErrorCode
	}
	if s.FinalFlags != "" {
		m["final_flags"] = s.FinalFlags
		m["removed"] = nonNil(s.Removed)
		m["rounds"] = s.Rounds
	}
	if s.Report != nil {
		m["report"] = s.Report
	}
	return m
}

// MarshalCanonical serializes the snapshot.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, 0)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's snapshot against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snap, err := NewSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	data, err := snap.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

func engineCode(err error) string {
	return string(engine.ErrorCode(err))
}

package ledger

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/flagsearch/internal/ir"
)

// ErrIncomplete is returned by Report when a reference measurement
// (O3, Os or initial base) is missing from the ledger.
var ErrIncomplete = errors.New("ledger is missing a reference measurement")

// Line is one row of the report.
type Line struct {
	Label string     `json:"run_id"`
	Kind  ir.RunKind `json:"kind"`
	Score ir.Score   `json:"score"`
	// Ratios are reference score divided by Score. They are zero for
	// failed runs.
	BaseRatio float64 `json:"base_ratio,omitempty"`
	O3Ratio   float64 `json:"o3_ratio,omitempty"`
	OsRatio   float64 `json:"os_ratio,omitempty"`
	Flags     string  `json:"flags"`
	Failure   string  `json:"failure,omitempty"`
}

// Report is the ratio report of a ledger.
type Report struct {
	InitialBase ir.Score `json:"initial_base"`
	O3          ir.Score `json:"o3"`
	Os          ir.Score `json:"os"`
	Lines       []Line   `json:"runs"`
}

// Ratio returns reference/score, the relative improvement of score over
// reference. Larger is better. An invalid score yields 0.
func Ratio(reference, score ir.Score) float64 {
	if !score.Valid() {
		return 0
	}
	return float64(reference) / float64(score)
}

// Report computes the ratio report. The references are the first
// successful O3, Os and base records.
func (l *Ledger) Report() (*Report, error) {
	o3, ok := l.first(ir.RunKindO3)
	if !ok {
		return nil, fmt.Errorf("%w: no O3 calibration run", ErrIncomplete)
	}
	osRun, ok := l.first(ir.RunKindOs)
	if !ok {
		return nil, fmt.Errorf("%w: no Os calibration run", ErrIncomplete)
	}
	base, ok := l.first(ir.RunKindBase)
	if !ok {
		return nil, fmt.Errorf("%w: no base run", ErrIncomplete)
	}

	rep := &Report{
		InitialBase: base.Score,
		O3:          o3.Score,
		Os:          osRun.Score,
		Lines:       make([]Line, 0, len(l.records)),
	}
	for _, r := range l.records {
		rep.Lines = append(rep.Lines, Line{
			Label:     r.Label(),
			Kind:      r.Kind,
			Score:     r.Score,
			BaseRatio: Ratio(base.Score, r.Score),
			O3Ratio:   Ratio(o3.Score, r.Score),
			OsRatio:   Ratio(osRun.Score, r.Score),
			Flags:     r.Flags,
			Failure:   r.Failure,
		})
	}
	return rep, nil
}

// WriteCSV writes one line per run:
//
//	run_id,score,base_ratio,o3_ratio,os_ratio,flags
//
// Numbers use the shortest representation that round-trips. Failed runs
// have empty ratio fields.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	for _, line := range r.Lines {
		row := []string{line.Label, line.Score.String(), "", "", "", line.Flags}
		if line.Score.Valid() {
			row[2] = formatRatio(line.BaseRatio)
			row[3] = formatRatio(line.O3Ratio)
			row[4] = formatRatio(line.OsRatio)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report line %s: %w", line.Label, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

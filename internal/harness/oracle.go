package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/flagsearch/internal/catalog"
	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/ir"
)

// ScriptedOracle answers evaluations from a scenario's score table.
//
// Thread-safety: ScriptedOracle is safe for concurrent use via internal mutex.
// Within one engine batch every request names a different configuration, so
// concurrent evaluation never changes which score a request receives.
type ScriptedOracle struct {
	scenario *Scenario
	disabled map[string]string // disabled spelling -> flag ID
	order    map[string]int    // flag ID -> catalog position

	mu    sync.Mutex
	calls map[string]int
	log   []ir.Request
}

var _ engine.Oracle = (*ScriptedOracle)(nil)

// NewScriptedOracle creates an oracle for s over cat, the catalog returned
// by s.Catalog().
func NewScriptedOracle(s *Scenario, cat *catalog.Catalog) *ScriptedOracle {
	o := &ScriptedOracle{
		scenario: s,
		disabled: make(map[string]string, cat.Len()),
		order:    make(map[string]int, cat.Len()),
		calls:    make(map[string]int),
	}
	for i, f := range cat.Flags() {
		o.disabled[f.Disabled] = f.ID
		o.order[f.ID] = i
	}
	return o
}

// Evaluate implements engine.Oracle.
func (o *ScriptedOracle) Evaluate(ctx context.Context, req ir.Request) (ir.Score, error) {
	key := o.key(req.Flags)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.log = append(o.log, req)
	n := o.calls[key]
	o.calls[key]++

	label := req.Label()
	switch key {
	case engine.O3Flags:
		if msg := o.scenario.Calibration.FailO3; msg != "" {
			return ir.FailedScore, fmt.Errorf("%s: %s", label, msg)
		}
		return ir.Score(o.scenario.Calibration.O3), nil
	case engine.OsFlags:
		if msg := o.scenario.Calibration.FailOs; msg != "" {
			return ir.FailedScore, fmt.Errorf("%s: %s", label, msg)
		}
		return ir.Score(o.scenario.Calibration.Os), nil
	}

	for _, f := range o.scenario.Failures {
		if f.Disabled == key && n >= f.After {
			return ir.FailedScore, fmt.Errorf("%s: %s", label, f.Error)
		}
	}

	seq, ok := o.scenario.Scores[key]
	if !ok {
		return ir.FailedScore, fmt.Errorf("%s: %w (disabled: %s)", label, ErrUnscripted, key)
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return ir.Score(seq[n]), nil
}

// ErrUnscripted is returned for a configuration the scenario has no score for.
var ErrUnscripted = errors.New("no score scripted for configuration")

// Requests returns every request received, in arrival order.
func (o *ScriptedOracle) Requests() []ir.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ir.Request, len(o.log))
	copy(out, o.log)
	return out
}

// key maps a flag string to its score key: the calibration flag itself, or
// the disabled flag IDs in catalog order.
func (o *ScriptedOracle) key(flags string) string {
	var ids []string
	for _, arg := range strings.Fields(flags) {
		if arg == engine.O3Flags || arg == engine.OsFlags {
			return arg
		}
		if id, ok := o.disabled[arg]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return NoneDisabled
	}
	slices.SortFunc(ids, func(a, b string) int {
		return o.order[a] - o.order[b]
	})
	return strings.Join(ids, ",")
}

package engine

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/flagsearch/internal/ir"
)

// outcome is the result of one evaluation.
type outcome struct {
	req   ir.Request
	score ir.Score
	err   error
}

// evaluate runs a batch through the worker pool, records every outcome in
// submission order, and fails with one SearchError per failed run.
func (e *Engine) evaluate(ctx context.Context, reqs []ir.Request, code SearchErrorCode) ([]outcome, error) {
	outcomes := e.runBatch(ctx, reqs)

	var failures error
	for _, o := range outcomes {
		rec := ir.RunRecord{
			RunID:      o.req.RunID,
			Kind:       o.req.Kind,
			Flags:      o.req.Flags,
			ConfigHash: ir.ConfigHash(o.req.Flags),
			Score:      o.score,
		}
		if o.err != nil {
			rec.Failure = o.err.Error()
			failures = multierr.Append(failures, runError(code, o.req, o.err))
		}
		if err := e.record(ctx, rec); err != nil {
			return nil, multierr.Append(failures, err)
		}
	}
	if failures != nil {
		if n := len(multierr.Errors(failures)); n > 1 {
			e.logger.Error("batch failed", "code", code, "failed", n, "submitted", len(reqs))
		}
		return nil, failures
	}
	return outcomes, nil
}

// runBatch evaluates reqs with at most e.jobs evaluations in flight and
// returns once all of them have finished. Outcomes are indexed like reqs.
//
// Evaluations never observe cancellation: a batch is always joined in full.
func (e *Engine) runBatch(ctx context.Context, reqs []ir.Request) []outcome {
	evalCtx := context.WithoutCancel(ctx)
	outcomes := make([]outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.jobs)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			e.logger.Debug("evaluating", "run", req.Label())
			score, err := e.oracle.Evaluate(evalCtx, req)
			if err == nil && !score.Valid() {
				err = fmt.Errorf("non-positive score %s", score)
			}
			if err != nil {
				score = ir.FailedScore
			}
			outcomes[i] = outcome{req: req, score: score, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

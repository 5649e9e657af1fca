package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/roach88/flagsearch/internal/catalog"
	"github.com/roach88/flagsearch/internal/flagset"
	"github.com/roach88/flagsearch/internal/ir"
	"github.com/roach88/flagsearch/internal/ledger"
)

// Oracle builds and measures one configuration.
// Implemented by oracle.Oracle (production) and harness.ScriptedOracle (tests).
//
// Evaluate must be safe for concurrent use with distinct requests. A non-nil
// error or a non-positive score is a failed evaluation.
type Oracle interface {
	Evaluate(ctx context.Context, req ir.Request) (ir.Score, error)
}

// Preflighter is implemented by oracles that can verify their environment
// before the first evaluation.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// RunSink receives every run record right after it is added to the ledger.
// Implemented by store.SessionWriter.
type RunSink interface {
	WriteRun(ctx context.Context, rec ir.RunRecord) error
}

// DefaultJobs is the default evaluation parallelism.
const DefaultJobs = 1

// Reference configurations used for calibration.
const (
	O3Flags = "-O3"
	OsFlags = "-Os"
)

// Engine runs one combined-elimination search.
//
// Thread-safety model:
//   - Run(): must be called exactly once, from one goroutine
//   - State(): safe from any goroutine
//   - Ledger(): safe once Run has returned
type Engine struct {
	cat    *catalog.Catalog
	oracle Oracle
	clock  *Clock
	jobs   int
	common string
	logger *slog.Logger
	sink   RunSink

	ledger  *ledger.Ledger
	state   atomic.Int32
	started atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithJobs sets how many evaluations run concurrently. Must be at least 1.
func WithJobs(n int) Option {
	return func(e *Engine) {
		e.jobs = n
	}
}

// WithCommonFlags sets flags prepended to every configuration, for example
// include paths or a target selection.
func WithCommonFlags(flags string) Option {
	return func(e *Engine) {
		e.common = flags
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSink forwards every run record to sink. A sink error aborts the search.
func WithSink(sink RunSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithClock sets the run ID clock (default NewClock()).
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine searching cat with oracle.
func New(cat *catalog.Catalog, oracle Oracle, opts ...Option) *Engine {
	e := &Engine{
		cat:    cat,
		oracle: oracle,
		clock:  NewClock(),
		jobs:   DefaultJobs,
		logger: slog.Default(),
		ledger: ledger.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of a converged search.
type Result struct {
	// Final is the converged base configuration.
	Final      flagset.FlagSet
	FinalScore ir.Score
	// FinalFlags is the complete flag string of Final, common flags included.
	FinalFlags string

	InitialBase ir.Score
	O3          ir.Score
	Os          ir.Score

	// Removed lists the accepted removals in acceptance order.
	Removed []string
	// Rounds is the number of evaluate rounds run, the last one included.
	Rounds int

	Ledger *ledger.Ledger
}

// State returns the current search state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Ledger returns the ledger of the search. It holds every evaluation made
// so far, including the failing ones of an aborted search.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.logger.Debug("search state", "from", prev, "to", s)
	}
}

// Run executes the search until it converges or fails.
//
// Cancelling ctx stops the search once the current batch has joined;
// evaluations already submitted always run to completion.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, errors.New("engine: Run called twice")
	}
	res, err := e.run(ctx)
	if err != nil {
		e.setState(StateFailed)
		return nil, err
	}
	e.setState(StateConverged)
	e.logger.Info("search converged",
		"rounds", res.Rounds,
		"removed", len(res.Removed),
		"final_score", res.FinalScore,
		"initial_base", res.InitialBase,
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context) (*Result, error) {
	e.setState(StateInit)
	if e.jobs < 1 {
		return nil, &SearchError{Code: ErrCodePrecondition, Err: fmt.Errorf("jobs must be at least 1, got %d", e.jobs)}
	}
	if p, ok := e.oracle.(Preflighter); ok {
		if err := p.Preflight(ctx); err != nil {
			return nil, &SearchError{Code: ErrCodePrecondition, Err: err}
		}
	}

	calibration, err := e.evaluate(ctx, []ir.Request{
		e.request(ir.RunKindO3, flagset.Compose(e.common, O3Flags)),
		e.request(ir.RunKindOs, flagset.Compose(e.common, OsFlags)),
	}, ErrCodeCalibration)
	if err != nil {
		return nil, err
	}
	o3, os := calibration[0].score, calibration[1].score
	e.logger.Info("calibrated", "o3", o3, "os", os)

	e.setState(StateBaseline)
	base := flagset.AllEnabled(e.cat)
	baseScore, err := e.evaluateOne(ctx, e.request(ir.RunKindBase, e.render(base)), ErrCodeBaseline)
	if err != nil {
		return nil, err
	}
	initialBase := baseScore
	e.logger.Info("baseline measured", "score", baseScore, "flags", base.EnabledCount())

	consider := e.cat.IDs()
	var removed []string
	rounds := 0

	for len(consider) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search interrupted after %d rounds: %w", rounds, err)
		}
		rounds++

		e.setState(StateEvaluate)
		improving, err := e.evaluateCandidates(ctx, base, baseScore, consider)
		if err != nil {
			return nil, err
		}
		e.logger.Info("round evaluated",
			"round", rounds,
			"candidates", len(consider),
			"improving", len(improving),
			"base_score", baseScore,
		)

		e.setState(StateConfirm)
		improved := false
		for _, c := range improving {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("search interrupted in round %d: %w", rounds, err)
			}

			candidate := base.Without(c.flag)
			score, err := e.evaluateOne(ctx, e.request(ir.RunKindTest, e.render(candidate)), ErrCodeConfirm)
			if err != nil {
				return nil, err
			}
			if !score.Less(baseScore) {
				e.logger.Info("removal not confirmed",
					"flag", c.flag,
					"first_score", c.score,
					"confirm_score", score,
					"base_score", baseScore,
				)
				continue
			}

			base = candidate
			consider = slices.DeleteFunc(consider, func(id string) bool { return id == c.flag })
			removed = append(removed, c.flag)
			improved = true

			newScore, err := e.evaluateOne(ctx, e.request(ir.RunKindBase, e.render(base)), ErrCodeBaseline)
			if err != nil {
				return nil, err
			}
			if baseScore.Less(newScore) {
				e.logger.Warn("base regressed after accepted removal",
					"flag", c.flag,
					"confirm_score", score,
					"previous_base", baseScore,
					"base_score", newScore,
				)
			} else {
				e.logger.Info("removal accepted", "flag", c.flag, "base_score", newScore)
			}
			baseScore = newScore
		}

		if !improved {
			break
		}
	}

	return &Result{
		Final:       base,
		FinalScore:  baseScore,
		FinalFlags:  e.render(base),
		InitialBase: initialBase,
		O3:          o3,
		Os:          os,
		Removed:     removed,
		Rounds:      rounds,
		Ledger:      e.ledger,
	}, nil
}

// candidate is a single-flag removal that beat the base score.
type candidate struct {
	flag  string
	score ir.Score
}

// evaluateCandidates evaluates one candidate per flag in consider and
// returns the improving ones, best first. Equal scores keep submission order.
func (e *Engine) evaluateCandidates(ctx context.Context, base flagset.FlagSet, baseScore ir.Score, consider []string) ([]candidate, error) {
	reqs := make([]ir.Request, len(consider))
	for i, id := range consider {
		reqs[i] = e.request(ir.RunKindTest, e.render(base.Without(id)))
	}

	outcomes, err := e.evaluate(ctx, reqs, ErrCodeCandidate)
	if err != nil {
		return nil, err
	}

	var improving []candidate
	for i, o := range outcomes {
		if o.score.Less(baseScore) {
			improving = append(improving, candidate{flag: consider[i], score: o.score})
		}
	}
	sort.SliceStable(improving, func(i, j int) bool {
		return improving[i].score.Less(improving[j].score)
	})
	return improving, nil
}

// request assigns the next run ID to a configuration.
func (e *Engine) request(kind ir.RunKind, flags string) ir.Request {
	return ir.Request{RunID: e.clock.Next(), Kind: kind, Flags: flags}
}

func (e *Engine) render(fs flagset.FlagSet) string {
	return flagset.Compose(e.common, fs.Render())
}

func (e *Engine) evaluateOne(ctx context.Context, req ir.Request, code SearchErrorCode) (ir.Score, error) {
	outcomes, err := e.evaluate(ctx, []ir.Request{req}, code)
	if err != nil {
		return ir.FailedScore, err
	}
	return outcomes[0].score, nil
}

// record appends rec to the ledger and the sink.
func (e *Engine) record(ctx context.Context, rec ir.RunRecord) error {
	e.ledger.Record(rec)
	if e.sink == nil {
		return nil
	}
	if err := e.sink.WriteRun(context.WithoutCancel(ctx), rec); err != nil {
		return &SearchError{
			Code:  ErrCodePersist,
			RunID: rec.RunID,
			Kind:  rec.Kind,
			Flags: rec.Flags,
			Err:   fmt.Errorf("write run record: %w", err),
		}
	}
	return nil
}

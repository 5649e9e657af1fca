package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/store"
	"github.com/roach88/flagsearch/internal/testutil"
)

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the engine logger (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// jobs overrides the scenario's parallelism when positive. Each scenario
// runs against a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Build the catalog and scripted oracle
// 2. Create a session in a fresh in-memory store
// 3. Run the engine with the session as run sink
// 4. Finish the session and read its runs back
// 5. Check expectations
//
// A search failure is part of the result, not an error: the returned error
// is reserved for harness problems.
func Run(scenario *Scenario, jobs int, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	if jobs <= 0 {
		jobs = scenario.Jobs
	}
	if jobs <= 0 {
		jobs = engine.DefaultJobs
	}

	cat, err := scenario.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	oracle := NewScriptedOracle(scenario, cat)

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs(scenario.Name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	sess, err := st.CreateSession(ctx, store.Session{
		Toolchain:        cat.Toolchain(),
		ToolchainVersion: cat.Version(),
		CatalogHash:      cat.Hash(),
		CommonFlags:      scenario.CommonFlags,
		Jobs:             jobs,
		Settings:         map[string]string{"scenario": scenario.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	eng := engine.New(cat, oracle,
		engine.WithJobs(jobs),
		engine.WithCommonFlags(scenario.CommonFlags),
		engine.WithLogger(cfg.logger),
		engine.WithSink(st.Writer(sess.ID)),
	)
	search, searchErr := eng.Run(ctx)

	result := NewResult()
	result.SessionID = sess.ID
	result.Search = search
	result.Err = searchErr

	outcome := store.Outcome{Status: store.StatusConverged}
	if searchErr != nil {
		outcome.Status = store.StatusFailed
		outcome.Failure = searchErr.Error()
	} else {
		outcome.FinalFlags = search.FinalFlags
		outcome.FinalScore = search.FinalScore
	}
	if err := st.FinishSession(ctx, sess.ID, outcome); err != nil {
		return nil, fmt.Errorf("failed to finish session: %w", err)
	}
	result.Status = outcome.Status

	runs, err := st.ReadRuns(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	result.Runs = runs

	for _, msg := range EvaluateExpectations(result, eng, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

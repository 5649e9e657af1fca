package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsearch/internal/catalog"
	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/ledger"
	"github.com/roach88/flagsearch/internal/metrics"
	"github.com/roach88/flagsearch/internal/oracle"
	"github.com/roach88/flagsearch/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	ConfigPath string

	// flags receives the command line values; see SearchConfig.
	flags SearchConfig

	// Runner allows overriding the command runner (for testing).
	// If nil, commands are executed with os/exec.
	Runner oracle.Runner
	// IDs allows overriding the session ID generator (for testing).
	// If nil, sessions get UUIDv7 IDs.
	IDs store.IDGenerator
}

// SearchOutput is the JSON payload of a finished search.
type SearchOutput struct {
	SessionID  string         `json:"session_id,omitempty"`
	Status     string         `json:"status"`
	FinalFlags string         `json:"final_flags,omitempty"`
	FinalScore float64        `json:"final_score,omitempty"`
	Removed    []string       `json:"removed,omitempty"`
	Rounds     int            `json:"rounds,omitempty"`
	Report     *ledger.Report `json:"report,omitempty"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	return newSearchCommand(&SearchOptions{RootOptions: rootOpts, flags: defaultSearchConfig()})
}

func newSearchCommand(opts *SearchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a combined-elimination flag search",
		Long: `Run a combined-elimination search over the flags of a catalog.

Every configuration is built into its own build and install directory and
measured with the measure script. The report lists one line per run:

  run_id,score,base_ratio,o3_ratio,os_ratio,flags

Settings are read from --config and overridden by flags given explicitly.

Exit codes:
  0 - Search converged
  1 - Search failed (a reference, base or candidate run failed)
  2 - Command error (bad configuration, missing tools, etc.)

Examples:
  flagsearch search --config search.yaml
  flagsearch search --src-dir ./bench --build-dir /tmp/b --install-dir /tmp/i \
    --database mageec.db --features features.csv --measure-script ./size.sh -j 8
  flagsearch search --config search.yaml --ledger runs.db --out report.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "YAML search configuration")
	bindSearchFlags(cmd.Flags(), &opts.flags)

	return cmd
}

// resolveConfig merges the config file, the flags and the defaults.
func (opts *SearchOptions) resolveConfig(cmd *cobra.Command) (SearchConfig, error) {
	cfg := opts.flags
	if opts.ConfigPath != "" {
		fileCfg, err := LoadSearchConfig(opts.ConfigPath)
		if err != nil {
			return SearchConfig{}, err
		}
		overrideChanged(cmd.Flags(), &fileCfg, opts.flags)
		cfg = fileCfg
	}
	if err := cfg.absPaths(); err != nil {
		return SearchConfig{}, err
	}
	if cfg.Jobs < 1 {
		return SearchConfig{}, fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
	}
	if cfg.FirstRunID < 0 {
		return SearchConfig{}, fmt.Errorf("first run ID must not be negative, got %d", cfg.FirstRunID)
	}
	return cfg, nil
}

func runSearch(opts *SearchOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := opts.resolveConfig(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	oracleOpts := []oracle.Option{
		oracle.WithLogger(logger),
		oracle.WithFirstRunID(int64(cfg.FirstRunID)),
	}
	if opts.Runner != nil {
		oracleOpts = append(oracleOpts, oracle.WithRunner(opts.Runner))
	}
	orc, err := oracle.New(cfg.Config, oracleOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(ctx, cfg, orc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	logger.Info("catalog loaded",
		"toolchain", cat.Toolchain(),
		"version", cat.Version(),
		"flags", cat.Len(),
		"hash", cat.Hash(),
	)

	engineOpts := []engine.Option{
		engine.WithJobs(cfg.Jobs),
		engine.WithCommonFlags(cfg.CommonFlags),
		engine.WithLogger(logger),
		engine.WithClock(engine.NewClockAt(int64(cfg.FirstRunID))),
	}

	var (
		st      *store.Store
		session store.Session
	)
	if cfg.Ledger != "" {
		var storeOpts []store.Option
		if opts.IDs != nil {
			storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDs))
		}
		st, err = store.Open(cfg.Ledger, storeOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open ledger database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing ledger database", "error", closeErr)
			}
		}()

		session, err = st.CreateSession(ctx, store.Session{
			Toolchain:        cat.Toolchain(),
			ToolchainVersion: cat.Version(),
			CatalogHash:      cat.Hash(),
			CommonFlags:      cfg.CommonFlags,
			Jobs:             cfg.Jobs,
			Settings:         cfg.settings(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create session", err)
		}
		logger.Info("session created", "id", session.ID, "seq", session.Seq)
		engineOpts = append(engineOpts, engine.WithSink(st.Writer(session.ID)))
	}

	var evaluator engine.Oracle = orc
	var evalMetrics *metrics.EvaluationMetrics
	if cfg.MetricsFile != "" {
		evalMetrics = metrics.New()
		evaluator = evalMetrics.Instrument(orc)
	}

	eng := engine.New(cat, evaluator, engineOpts...)
	res, searchErr := eng.Run(ctx)

	if evalMetrics != nil {
		if err := evalMetrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	if st != nil {
		outcome := store.Outcome{Status: store.StatusConverged}
		if searchErr != nil {
			outcome.Status = store.StatusFailed
			outcome.Failure = searchErr.Error()
		} else {
			outcome.FinalFlags = res.FinalFlags
			outcome.FinalScore = res.FinalScore
		}
		if err := st.FinishSession(context.WithoutCancel(ctx), session.ID, outcome); err != nil {
			logger.Error("failed to finish session", "id", session.ID, "error", err)
		}
	}

	// Failed searches still report the runs made so far when the
	// references were measured.
	report, err := eng.Ledger().Report()
	if err != nil && !errors.Is(err, ledger.ErrIncomplete) {
		return WrapExitError(ExitFailure, "failed to build report", err)
	}

	if report != nil {
		if err := writeReport(cfg.Out, out, report); err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
	}

	if searchErr != nil {
		code := ExitFailure
		if engine.ErrorCode(searchErr) == engine.ErrCodePrecondition {
			code = ExitCommandError
		}
		if out.Format == "json" {
			_ = out.Error(string(engine.ErrorCode(searchErr)), searchErr.Error(), map[string]any{
				"session_id": session.ID,
				"report":     report,
			})
		}
		return WrapExitError(code, "search failed", searchErr)
	}

	if out.Format == "json" {
		return out.Success(SearchOutput{
			SessionID:  session.ID,
			Status:     string(store.StatusConverged),
			FinalFlags: res.FinalFlags,
			FinalScore: float64(res.FinalScore),
			Removed:    res.Removed,
			Rounds:     res.Rounds,
			Report:     report,
		})
	}
	summarize(out.GetErrWriter(), res, session.ID)
	return nil
}

// loadCatalog loads the configured catalog for the configured toolchain
// version, asking the compiler when none is configured.
func loadCatalog(ctx context.Context, cfg SearchConfig, orc *oracle.Oracle) (*catalog.Catalog, error) {
	version := cfg.ToolchainVersion
	if version == "" {
		v, err := orc.ToolchainVersion(ctx)
		if err != nil {
			return nil, err
		}
		version = v
	}
	if cfg.Catalog != "" {
		return catalog.Load(cfg.Catalog, version)
	}
	return catalog.LoadDefault(cfg.Toolchain, version)
}

// writeReport writes the CSV report to path, or to the formatter in text
// mode when path is empty. In JSON mode without a path the report is part
// of the JSON payload instead.
func writeReport(path string, out *OutputFormatter, rep *ledger.Report) error {
	if path == "" {
		if out.Format == "json" {
			return nil
		}
		return rep.WriteCSV(out.Writer)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rep.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// summarize prints the outcome of a converged search.
func summarize(w io.Writer, res *engine.Result, sessionID string) {
	fmt.Fprintf(w, "converged after %d rounds: score %s (initial %s, -O3 %s, -Os %s)\n",
		res.Rounds, res.FinalScore, res.InitialBase, res.O3, res.Os)
	fmt.Fprintf(w, "removed: %v\n", res.Removed)
	fmt.Fprintf(w, "flags: %s\n", res.FinalFlags)
	if sessionID != "" {
		fmt.Fprintf(w, "session: %s\n", sessionID)
	}
}

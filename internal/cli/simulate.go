package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/harness"
	"github.com/roach88/flagsearch/internal/ledger"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Jobs int
}

// SimulateOutput is the JSON payload of the simulate command.
type SimulateOutput struct {
	Scenario   string         `json:"scenario"`
	Pass       bool           `json:"pass"`
	Status     string         `json:"status"`
	ErrorCode  string         `json:"error_code,omitempty"`
	FinalFlags string         `json:"final_flags,omitempty"`
	Removed    []string       `json:"removed,omitempty"`
	Rounds     int            `json:"rounds,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	Report     *ledger.Report `json:"report,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a search against scripted scores",
		Long: `Run the search engine against a scenario file instead of real builds.

A scenario lists the catalog flags, the reference scores and the score of
every configuration the search will measure, keyed by the flags it
disables. Expectations in the scenario are checked after the search.

Exit codes:
  0 - Expectations held (or, without expectations, the search converged)
  1 - Expectations failed (or, without expectations, the search failed)
  2 - Command error (unreadable or invalid scenario)

Examples:
  flagsearch simulate ./scenarios/three_flags.yaml
  flagsearch simulate ./scenarios/three_flags.yaml --jobs 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "evaluation parallelism (default: the scenario's)")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if opts.Jobs < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("jobs must not be negative, got %d", opts.Jobs))
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	result, err := harness.Run(scenario, opts.Jobs, harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	rep, err := ledger.FromRecords(result.Runs).Report()
	if err != nil && !errors.Is(err, ledger.ErrIncomplete) {
		return WrapExitError(ExitFailure, "failed to build report", err)
	}

	output := SimulateOutput{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Status:   string(result.Status),
		Errors:   result.Errors,
		Report:   rep,
	}
	if result.Err != nil {
		output.ErrorCode = string(engine.ErrorCode(result.Err))
	}
	if s := result.Search; s != nil {
		output.FinalFlags = s.FinalFlags
		output.Removed = s.Removed
		output.Rounds = s.Rounds
	}

	if out.Format == "json" {
		if err := out.Success(output); err != nil {
			return err
		}
	} else {
		if rep != nil {
			if err := rep.WriteCSV(out.Writer); err != nil {
				return WrapExitError(ExitCommandError, "failed to write report", err)
			}
		}
		printSimulation(out, output, result.Err)
	}

	switch {
	case !result.Pass:
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s: %d expectations failed", scenario.Name, len(result.Errors)))
	case scenario.Expect == nil && result.Err != nil:
		return WrapExitError(ExitFailure, "search failed", result.Err)
	}
	return nil
}

func printSimulation(out *OutputFormatter, o SimulateOutput, searchErr error) {
	w := out.GetErrWriter()
	mark := "✓"
	if !o.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %s\n", mark, o.Scenario, o.Status)
	if searchErr != nil {
		fmt.Fprintf(w, "  %v\n", searchErr)
	} else {
		fmt.Fprintf(w, "  rounds: %d, removed: %v\n", o.Rounds, o.Removed)
		fmt.Fprintf(w, "  flags: %s\n", o.FinalFlags)
	}
	for _, e := range o.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

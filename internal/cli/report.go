package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flagsearch/internal/ledger"
	"github.com/roach88/flagsearch/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Ledger  string
	Session string
	Out     string
	List    bool
}

// SessionView is the JSON form of a stored session.
type SessionView struct {
	ID               string  `json:"id"`
	Seq              int64   `json:"seq"`
	Status           string  `json:"status"`
	Toolchain        string  `json:"toolchain"`
	ToolchainVersion string  `json:"toolchain_version"`
	CatalogHash      string  `json:"catalog_hash"`
	Jobs             int     `json:"jobs"`
	FinalFlags       string  `json:"final_flags,omitempty"`
	FinalScore       float64 `json:"final_score,omitempty"`
	Failure          string  `json:"failure,omitempty"`
}

func newSessionView(s store.Session) SessionView {
	return SessionView{
		ID:               s.ID,
		Seq:              s.Seq,
		Status:           string(s.Status),
		Toolchain:        s.Toolchain,
		ToolchainVersion: s.ToolchainVersion,
		CatalogHash:      s.CatalogHash,
		Jobs:             s.Jobs,
		FinalFlags:       s.FinalFlags,
		FinalScore:       float64(s.FinalScore),
		Failure:          s.Failure,
	}
}

// ReportOutput is the JSON payload of the report command.
type ReportOutput struct {
	Session SessionView    `json:"session"`
	Report  *ledger.Report `json:"report"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the report of a stored search",
		Long: `Rebuild the ratio report of a search from its stored run records.

Without --session the most recent session is reported.

Examples:
  flagsearch report --ledger runs.db
  flagsearch report --ledger runs.db --session 0190a5c4-... --out report.csv
  flagsearch report --ledger runs.db --list`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "SQLite database written by search --ledger (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "report file (default: stdout)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list sessions instead")
	_ = cmd.MarkFlagRequired("ledger")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Ledger); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("ledger database not found: %s", opts.Ledger))
	}
	st, err := store.Open(opts.Ledger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.List {
		return listSessions(ctx, st, out)
	}

	var sess store.Session
	if opts.Session != "" {
		sess, err = st.ReadSession(ctx, opts.Session)
	} else {
		sess, err = st.LatestSession(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "no such session", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	runs, err := st.ReadRuns(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}
	out.VerboseLog("session %s: %d runs, status %s", sess.ID, len(runs), sess.Status)

	rep, err := ledger.FromRecords(runs).Report()
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("session %s has no report", sess.ID), err)
	}

	if err := writeReport(opts.Out, out, rep); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if out.Format == "json" {
		return out.Success(ReportOutput{Session: newSessionView(sess), Report: rep})
	}
	return nil
}

func listSessions(ctx context.Context, st *store.Store, out *OutputFormatter) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if out.Format == "json" {
		views := make([]SessionView, len(sessions))
		for i, s := range sessions {
			views[i] = newSessionView(s)
		}
		return out.Success(views)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out.Writer, "No sessions found.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(out.Writer, "%d\t%s\t%s\t%s %s\t%s\n",
			s.Seq, s.ID, s.Status, s.Toolchain, s.ToolchainVersion, s.FinalScore)
	}
	return nil
}

package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/roach88/flagsearch/internal/flagset"
	"github.com/roach88/flagsearch/internal/ir"
)

// Names of the files an evaluation leaves behind.
const (
	BuildLogName        = "build.log"
	MeasureLogName      = "measure.log"
	CompilationsCSVName = "compilations.csv"
	ResultsCSVName      = "results.csv"
)

// Oracle evaluates flag configurations by building and measuring them.
type Oracle struct {
	cfg     Config
	runner  Runner
	logger  *slog.Logger
	workDir string

	firstRunID int64
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithRunner replaces the command runner (default ExecRunner).
func WithRunner(r Runner) Option {
	return func(o *Oracle) {
		o.runner = r
	}
}

// WithFirstRunID sets the ID the search starts numbering runs at, so that
// Preflight can detect run directories left behind by an earlier search.
func WithFirstRunID(id int64) Option {
	return func(o *Oracle) {
		o.firstRunID = id
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) {
		o.logger = l
	}
}

// WithWorkDir sets the directory relative script paths are resolved
// against (default: the process working directory at construction).
func WithWorkDir(dir string) Option {
	return func(o *Oracle) {
		o.workDir = dir
	}
}

// New creates an Oracle. The configuration is validated and copied.
func New(cfg Config, opts ...Option) (*Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle config: %w", err)
	}

	o := &Oracle{
		cfg:    cfg,
		runner: ExecRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		o.workDir = wd
	}
	return o, nil
}

// Config returns a copy of the oracle configuration.
func (o *Oracle) Config() Config {
	return o.cfg
}

// Preflight checks every precondition of an evaluation: the source tree,
// instrumentation inputs and every executable referenced by name. All
// problems are reported together.
func (o *Oracle) Preflight(ctx context.Context) error {
	var errs error

	if info, err := os.Stat(o.cfg.SrcDir); err != nil || !info.IsDir() {
		errs = multierr.Append(errs, fmt.Errorf("source directory %q does not exist", o.cfg.SrcDir))
	}
	if o.cfg.Instrumented() {
		if !fileExists(o.cfg.DatabasePath) {
			errs = multierr.Append(errs, fmt.Errorf("database %q does not exist", o.cfg.DatabasePath))
		}
		if !fileExists(o.cfg.FeaturesPath) {
			errs = multierr.Append(errs, fmt.Errorf("features file %q does not exist", o.cfg.FeaturesPath))
		}
	}

	commands := []string{o.cfg.CC, o.cfg.CXX, o.cfg.Fort}
	if o.cfg.Instrumented() {
		cc, cxx, fort := o.cfg.compilers()
		commands = append(commands, cc, cxx, fort)
	}

	plan, err := o.resolveBuild()
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	switch plan.kind {
	case buildCMake:
		commands = append(commands, "cmake", "make")
	case buildConfigure:
		commands = append(commands, "make")
	}

	for _, name := range commands {
		if _, err := o.runner.LookPath(name); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("command %q is not on the path", name))
		}
	}

	if _, err := o.resolveScript(o.cfg.MeasureScript); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("measure script %q not found: %w", o.cfg.MeasureScript, err))
	}

	for _, root := range []string{o.cfg.BuildRoot, o.cfg.InstallRoot} {
		errs = multierr.Append(errs, o.checkRunDirs(root))
	}

	if errs == nil {
		o.logger.Debug("oracle preflight passed", "src_dir", o.cfg.SrcDir, "commands", commands)
	}
	return errs
}

// ToolchainVersion asks the C compiler for its version with -dumpversion.
// The plain compiler is asked, never the wrapper.
func (o *Oracle) ToolchainVersion(ctx context.Context) (string, error) {
	var out strings.Builder
	cmd := Command{Path: o.cfg.CC, Args: []string{"-dumpversion"}}
	if err := o.runner.Run(ctx, cmd, &out); err != nil {
		return "", fmt.Errorf("detect toolchain version: %w", err)
	}
	version := strings.TrimSpace(out.String())
	if version == "" {
		return "", fmt.Errorf("detect toolchain version: %s printed nothing", o.cfg.CC)
	}
	return version, nil
}

// Evaluate builds and measures one configuration and returns its score.
//
// On failure the score is ir.FailedScore and the error is an *EvalError.
// All files produced live under the run's own build and install directories.
func (o *Oracle) Evaluate(ctx context.Context, req ir.Request) (ir.Score, error) {
	label := req.Label()
	buildDir := filepath.Join(o.cfg.BuildRoot, label)
	installDir := filepath.Join(o.cfg.InstallRoot, label)

	fail := func(stage, log string, err error) (ir.Score, error) {
		o.logger.Debug("evaluation failed", "run", label, "stage", stage, "error", err)
		return ir.FailedScore, &EvalError{Label: label, Stage: stage, Log: log, Err: err}
	}

	for _, dir := range []string{buildDir, installDir} {
		if err := makeExclusiveDir(dir); err != nil {
			return fail(StagePrepare, "", err)
		}
	}

	plan, err := o.resolveBuild()
	if err != nil {
		return fail(StagePrepare, "", err)
	}

	compilationsPath := filepath.Join(installDir, CompilationsCSVName)
	resultsPath := filepath.Join(installDir, ResultsCSVName)
	cc, cxx, fort := o.cfg.compilers()
	spec := buildSpec{
		srcDir:     o.cfg.SrcDir,
		buildDir:   buildDir,
		installDir: installDir,
		cc:         cc,
		cxx:        cxx,
		fort:       fort,
		flags:      flagset.Compose(o.cfg.wrapperFlags(compilationsPath), req.Flags),
	}

	o.logger.Debug("building", "run", label, "build_dir", buildDir)
	buildLog := filepath.Join(buildDir, BuildLogName)
	if err := withLog(buildLog, func(w io.Writer) error {
		return o.build(ctx, plan, spec, w)
	}); err != nil {
		return fail(StageBuild, buildLog, err)
	}

	measureLog := filepath.Join(installDir, MeasureLogName)
	if err := withLog(measureLog, func(w io.Writer) error {
		return o.measure(ctx, installDir, compilationsPath, resultsPath, w)
	}); err != nil {
		return fail(StageMeasure, measureLog, err)
	}

	total, modules, err := o.aggregate(compilationsPath, resultsPath)
	if err != nil {
		return fail(StageResults, resultsPath, err)
	}
	if !ir.Score(total).Valid() {
		return fail(StageResults, resultsPath, fmt.Errorf("non-positive total %v", total))
	}

	o.logger.Debug("evaluated", "run", label, "score", total, "modules", len(modules))
	return ir.Score(total), nil
}

// measure runs the measurement script over the installed artifacts.
func (o *Oracle) measure(ctx context.Context, installDir, compilationsPath, resultsPath string, log io.Writer) error {
	script, err := o.resolveScript(o.cfg.MeasureScript)
	if err != nil {
		return fmt.Errorf("find measure script: %w", err)
	}
	cmd := Command{
		Path: script,
		Args: []string{
			"--install-dir", installDir,
			"--flags", o.cfg.ExecFlags,
			"--compilation-ids", compilationsPath,
			"--out", resultsPath,
		},
		Dir: installDir,
	}
	fmt.Fprintf(log, "-- %s\n", cmd)
	return o.runner.Run(ctx, cmd, log)
}

// aggregate sums the module results of one build.
func (o *Oracle) aggregate(compilationsPath, resultsPath string) (float64, []ModuleResult, error) {
	var ids map[string]bool
	if f, err := os.Open(compilationsPath); err == nil {
		ids, err = ReadCompilationIDs(f)
		f.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("read compilation ids: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, nil, fmt.Errorf("open compilation ids: %w", err)
	}

	f, err := os.Open(resultsPath)
	if err != nil {
		return 0, nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	return SumResults(f, o.cfg.Metric, ids)
}

// checkRunDirs fails when root already holds a run directory the search
// would number again, that is one labelled with an ID at or past the first.
func (o *Oracle) checkRunDirs(root string) error {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", root, err)
	}

	var taken []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		kind, id, ok := strings.Cut(e.Name(), "-")
		if !ok {
			continue
		}
		if _, err := ir.ParseRunKind(kind); err != nil {
			continue
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n < o.firstRunID {
			continue
		}
		taken = append(taken, e.Name())
	}
	if len(taken) == 0 {
		return nil
	}
	return fmt.Errorf("%s already holds run directories from an earlier search (%s); use a fresh directory or start run IDs past them",
		root, strings.Join(taken, ", "))
}

// makeExclusiveDir creates dir, failing if it already exists.
func makeExclusiveDir(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dir), err)
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("directory %s already in use", dir)
		}
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// withLog runs fn with a freshly created log file.
func withLog(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	runErr := fn(f)
	if err := f.Close(); err != nil && runErr == nil {
		return fmt.Errorf("close log: %w", err)
	}
	return runErr
}

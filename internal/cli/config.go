package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/oracle"
)

// SearchConfig is everything a search needs. It is read from an optional
// YAML file and overridden by the flags set on the command line.
type SearchConfig struct {
	oracle.Config `yaml:",inline"`

	// Catalog is a CUE catalog file. Empty selects the builtin catalog
	// of Toolchain.
	Catalog   string `yaml:"catalog"`
	Toolchain string `yaml:"toolchain"`
	// ToolchainVersion filters the catalog. Empty asks the C compiler.
	ToolchainVersion string `yaml:"toolchain_version"`

	CommonFlags string `yaml:"common_flags"`
	Jobs        int    `yaml:"jobs"`
	// FirstRunID numbers the first run, so that a search can reuse build
	// and install roots holding the directories of an earlier one.
	FirstRunID int `yaml:"first_run_id"`

	// Ledger is the SQLite database run records are stored in. Empty
	// keeps them in memory only.
	Ledger string `yaml:"ledger"`
	// Out is the report file. Empty writes the report to stdout.
	Out string `yaml:"out"`
	// MetricsFile receives evaluation metrics in the Prometheus text
	// format when the search ends.
	MetricsFile string `yaml:"metrics_file"`
}

// defaultSearchConfig returns the configuration used for everything neither
// the file nor the flags set.
func defaultSearchConfig() SearchConfig {
	return SearchConfig{
		Config: oracle.Config{
			CC:            "gcc",
			CXX:           "g++",
			Fort:          "gfortran",
			WrapperPrefix: oracle.DefaultWrapperPrefix,
			Metric:        oracle.DefaultMetric,
		},
		Toolchain: "gcc",
		Jobs:      engine.DefaultJobs,
	}
}

// LoadSearchConfig reads a YAML configuration file on top of the defaults.
// Unknown keys are an error. Relative paths are resolved against the
// directory of the file.
func LoadSearchConfig(path string) (SearchConfig, error) {
	cfg := defaultSearchConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// pathFields returns the fields holding file system paths.
func (c *SearchConfig) pathFields() []*string {
	return []*string{
		&c.SrcDir, &c.BuildRoot, &c.InstallRoot,
		&c.DatabasePath, &c.FeaturesPath,
		&c.Catalog, &c.Ledger, &c.Out, &c.MetricsFile,
	}
}

// scriptFields returns the fields naming either a script path or a command
// looked up on PATH.
func (c *SearchConfig) scriptFields() []*string {
	fields := []*string{&c.MeasureScript}
	switch c.BuildSystem {
	case oracle.BuildSystemAuto, oracle.BuildSystemCMake, oracle.BuildSystemConfigure:
	default:
		fields = append(fields, &c.BuildSystem)
	}
	return fields
}

// resolvePaths makes every relative path absolute against base. Scripts
// are resolved only when they name a path or a file present in base, so a
// bare command name still goes through PATH.
func (c *SearchConfig) resolvePaths(base string) {
	for _, p := range c.pathFields() {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	for _, p := range c.scriptFields() {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		candidate := filepath.Join(base, *p)
		if strings.ContainsRune(*p, filepath.Separator) || fileExists(candidate) {
			*p = candidate
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// absPaths makes every relative path absolute against the working directory.
func (c *SearchConfig) absPaths() error {
	for _, p := range c.pathFields() {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// searchFlag binds one command line flag to a SearchConfig field.
type searchFlag struct {
	name      string
	shorthand string
	usage     string
	field     func(*SearchConfig) any
}

var searchFlags = []searchFlag{
	{"src-dir", "", "source directory of the benchmark", func(c *SearchConfig) any { return &c.SrcDir }},
	{"build-dir", "", "root of the per-run build directories", func(c *SearchConfig) any { return &c.BuildRoot }},
	{"install-dir", "", "root of the per-run install directories", func(c *SearchConfig) any { return &c.InstallRoot }},
	{"build-system", "", `"cmake", "configure" or a build script (default: detect)`, func(c *SearchConfig) any { return &c.BuildSystem }},
	{"cc", "", "C compiler", func(c *SearchConfig) any { return &c.CC }},
	{"cxx", "", "C++ compiler", func(c *SearchConfig) any { return &c.CXX }},
	{"fort", "", "Fortran compiler", func(c *SearchConfig) any { return &c.Fort }},
	{"wrapper-prefix", "", "prefix of the instrumenting compiler wrappers, empty for plain compilers", func(c *SearchConfig) any { return &c.WrapperPrefix }},
	{"database", "", "feature database of the compiler wrappers", func(c *SearchConfig) any { return &c.DatabasePath }},
	{"features", "", "feature file of the compiler wrappers", func(c *SearchConfig) any { return &c.FeaturesPath }},
	{"debug", "", "pass the debug flag to the compiler wrappers", func(c *SearchConfig) any { return &c.Debug }},
	{"measure-script", "", "script measuring an installed build", func(c *SearchConfig) any { return &c.MeasureScript }},
	{"exec-flags", "", "flags passed through to the measure script", func(c *SearchConfig) any { return &c.ExecFlags }},
	{"metric", "", "result metric to sum", func(c *SearchConfig) any { return &c.Metric }},
	{"catalog", "", "CUE flag catalog (default: builtin catalog of --toolchain)", func(c *SearchConfig) any { return &c.Catalog }},
	{"toolchain", "", "builtin catalog to search", func(c *SearchConfig) any { return &c.Toolchain }},
	{"toolchain-version", "", "toolchain version filtering the catalog (default: ask the C compiler)", func(c *SearchConfig) any { return &c.ToolchainVersion }},
	{"common-flags", "", "flags prepended to every configuration", func(c *SearchConfig) any { return &c.CommonFlags }},
	{"jobs", "j", "number of configurations built concurrently", func(c *SearchConfig) any { return &c.Jobs }},
	{"first-run-id", "", "ID of the first run", func(c *SearchConfig) any { return &c.FirstRunID }},
	{"ledger", "", "SQLite database storing the session and its runs", func(c *SearchConfig) any { return &c.Ledger }},
	{"out", "o", "report file (default: stdout)", func(c *SearchConfig) any { return &c.Out }},
	{"metrics-file", "", "Prometheus textfile receiving evaluation metrics", func(c *SearchConfig) any { return &c.MetricsFile }},
}

// bindSearchFlags registers a flag for every configurable field of cfg,
// with the current values of cfg as defaults.
func bindSearchFlags(fs *pflag.FlagSet, cfg *SearchConfig) {
	for _, f := range searchFlags {
		switch v := f.field(cfg).(type) {
		case *string:
			fs.StringVarP(v, f.name, f.shorthand, *v, f.usage)
		case *bool:
			fs.BoolVarP(v, f.name, f.shorthand, *v, f.usage)
		case *int:
			fs.IntVarP(v, f.name, f.shorthand, *v, f.usage)
		}
	}
}

// overrideChanged copies the fields whose flags were set on the command
// line from flags into cfg.
func overrideChanged(fs *pflag.FlagSet, cfg *SearchConfig, flags SearchConfig) {
	byName := make(map[string]searchFlag, len(searchFlags))
	for _, f := range searchFlags {
		byName[f.name] = f
	}
	fs.Visit(func(fl *pflag.Flag) {
		f, ok := byName[fl.Name]
		if !ok {
			return
		}
		switch dst := f.field(cfg).(type) {
		case *string:
			*dst = *f.field(&flags).(*string)
		case *bool:
			*dst = *f.field(&flags).(*bool)
		case *int:
			*dst = *f.field(&flags).(*int)
		}
	})
}

// settings snapshots the build and measure configuration of a session.
func (c SearchConfig) settings() map[string]string {
	return map[string]string{
		"src_dir":        c.SrcDir,
		"build_dir":      c.BuildRoot,
		"install_dir":    c.InstallRoot,
		"build_system":   c.BuildSystem,
		"cc":             c.CC,
		"cxx":            c.CXX,
		"fort":           c.Fort,
		"wrapper_prefix": c.WrapperPrefix,
		"database":       c.DatabasePath,
		"features":       c.FeaturesPath,
		"debug":          strconv.FormatBool(c.Debug),
		"measure_script": c.MeasureScript,
		"exec_flags":     c.ExecFlags,
		"metric":         c.Metric,
		"catalog":        c.Catalog,
	}
}

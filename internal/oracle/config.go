package oracle

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Build system hints understood by the build pipeline. Any other non-empty
// hint names a custom build script.
const (
	BuildSystemAuto      = ""
	BuildSystemCMake     = "cmake"
	BuildSystemConfigure = "configure"
)

// DefaultWrapperPrefix is prepended to compiler names to select the
// instrumenting wrappers (mageec-gcc for gcc).
const DefaultWrapperPrefix = "mageec-"

// DefaultMetric is the measurement metric the command line sums unless told
// otherwise.
const DefaultMetric = "size"

// Config is the immutable description of how to build and measure.
// It is copied into the Oracle at construction.
type Config struct {
	SrcDir      string `yaml:"src_dir"`
	BuildRoot   string `yaml:"build_dir"`
	InstallRoot string `yaml:"install_dir"`
	// BuildSystem is "", "cmake", "configure" or the path of a build script.
	BuildSystem string `yaml:"build_system"`

	CC   string `yaml:"cc"`
	CXX  string `yaml:"cxx"`
	Fort string `yaml:"fort"`

	// WrapperPrefix selects the instrumenting compiler wrappers. Empty
	// builds with the plain compilers and skips instrumentation flags.
	WrapperPrefix string `yaml:"wrapper_prefix"`
	DatabasePath  string `yaml:"database"`
	FeaturesPath  string `yaml:"features"`
	Debug         bool   `yaml:"debug"`

	MeasureScript string `yaml:"measure_script"`
	ExecFlags     string `yaml:"exec_flags"`
	// Metric selects which result rows are summed. Empty accepts any metric.
	Metric string `yaml:"metric"`
}

// Validate checks that the configuration is complete. It does not touch
// the file system; see Oracle.Preflight for that.
func (c Config) Validate() error {
	required := []struct {
		name, value string
	}{
		{"src_dir", c.SrcDir},
		{"build_dir", c.BuildRoot},
		{"install_dir", c.InstallRoot},
		{"cc", c.CC},
		{"cxx", c.CXX},
		{"fort", c.Fort},
		{"measure_script", c.MeasureScript},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	for _, d := range []struct{ name, value string }{
		{"src_dir", c.SrcDir},
		{"build_dir", c.BuildRoot},
		{"install_dir", c.InstallRoot},
	} {
		if !filepath.IsAbs(d.value) {
			return fmt.Errorf("%s must be an absolute path: %q", d.name, d.value)
		}
	}
	if c.Instrumented() {
		if c.DatabasePath == "" {
			return fmt.Errorf("database is required when building through %s wrappers", c.WrapperPrefix)
		}
		if c.FeaturesPath == "" {
			return fmt.Errorf("features is required when building through %s wrappers", c.WrapperPrefix)
		}
	}
	return nil
}

// Instrumented reports whether builds go through the compiler wrappers.
func (c Config) Instrumented() bool {
	return c.WrapperPrefix != ""
}

// compilers returns the C, C++ and Fortran commands used for builds.
func (c Config) compilers() (cc, cxx, fort string) {
	return c.WrapperPrefix + c.CC, c.WrapperPrefix + c.CXX, c.WrapperPrefix + c.Fort
}

// wrapperFlags returns the instrumentation flags for a build whose
// compilation ids are written to compilationsPath.
func (c Config) wrapperFlags(compilationsPath string) string {
	if !c.Instrumented() {
		return ""
	}
	var flags []string
	if c.Debug {
		flags = append(flags, "-fmageec-debug")
	}
	flags = append(flags,
		"-fmageec-mode=gather",
		"-fmageec-database="+c.DatabasePath,
		"-fmageec-features="+c.FeaturesPath,
		"-fmageec-out="+compilationsPath,
	)
	return strings.Join(flags, " ")
}

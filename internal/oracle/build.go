package oracle

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// buildKind is the resolved form of a build system hint.
type buildKind int

const (
	buildCMake buildKind = iota + 1
	buildConfigure
	buildScript
)

// buildPlan is a resolved build system for one source directory.
type buildPlan struct {
	kind buildKind
	// script is the resolved custom build script (buildScript only).
	script string
}

// buildSpec describes one build.
type buildSpec struct {
	srcDir     string
	buildDir   string
	installDir string
	cc         string
	cxx        string
	fort       string
	flags      string
}

// resolveBuild turns the configured hint into a build plan, detecting
// CMake or configure based projects when no hint was given.
func (o *Oracle) resolveBuild() (buildPlan, error) {
	switch o.cfg.BuildSystem {
	case BuildSystemAuto:
		if fileExists(filepath.Join(o.cfg.SrcDir, "CMakeLists.txt")) {
			return buildPlan{kind: buildCMake}, nil
		}
		if fileExists(filepath.Join(o.cfg.SrcDir, "configure")) {
			return buildPlan{kind: buildConfigure}, nil
		}
		return buildPlan{}, fmt.Errorf("no supported build system found in %s", o.cfg.SrcDir)
	case BuildSystemCMake:
		return buildPlan{kind: buildCMake}, nil
	case BuildSystemConfigure:
		return buildPlan{kind: buildConfigure}, nil
	default:
		script, err := o.resolveScript(o.cfg.BuildSystem)
		if err != nil {
			return buildPlan{}, fmt.Errorf("build system %q is not a known keyword or executable script: %w", o.cfg.BuildSystem, err)
		}
		return buildPlan{kind: buildScript, script: script}, nil
	}
}

// build configures, builds and installs one configuration.
func (o *Oracle) build(ctx context.Context, plan buildPlan, spec buildSpec, log io.Writer) error {
	switch plan.kind {
	case buildCMake, buildConfigure:
		var configure Command
		if plan.kind == buildCMake {
			configure = Command{
				Path: "cmake",
				Args: []string{
					spec.srcDir, "-G", "Unix Makefiles",
					"-DCMAKE_C_COMPILER=" + spec.cc,
					"-DCMAKE_C_FLAGS=" + spec.flags,
					"-DCMAKE_CXX_COMPILER=" + spec.cxx,
					"-DCMAKE_CXX_FLAGS=" + spec.flags,
					"-DCMAKE_Fortran_COMPILER=" + spec.fort,
					"-DCMAKE_Fortran_FLAGS=" + spec.flags,
					"-DCMAKE_INSTALL_PREFIX=" + spec.installDir,
				},
				Dir: spec.buildDir,
			}
		} else {
			configure = Command{
				Path: filepath.Join(spec.srcDir, "configure"),
				Args: []string{
					"CC=" + spec.cc,
					"CFLAGS=" + spec.flags,
					"CXX=" + spec.cxx,
					"CXXFLAGS=" + spec.flags,
					"FC=" + spec.fort,
					"FCFLAGS=" + spec.flags,
					"--prefix=" + spec.installDir,
				},
				Dir: spec.buildDir,
			}
		}
		steps := []Command{
			configure,
			{Path: "make", Dir: spec.buildDir},
			{Path: "make", Args: []string{"install"}, Dir: spec.buildDir},
		}
		for _, step := range steps {
			fmt.Fprintf(log, "-- %s\n", step)
			if err := o.runner.Run(ctx, step, log); err != nil {
				return err
			}
		}
		return nil

	case buildScript:
		// Custom scripts may build in tree, so they get a private mirror
		// of the source directory.
		mirror := filepath.Join(spec.buildDir, "src")
		if err := mirrorTree(spec.srcDir, mirror); err != nil {
			return fmt.Errorf("mirror source tree: %w", err)
		}
		cmd := Command{
			Path: plan.script,
			Args: []string{
				"--src-dir", mirror,
				"--build-dir", spec.buildDir,
				"--install-dir", spec.installDir,
				"--cc", spec.cc,
				"--cxx", spec.cxx,
				"--fort", spec.fort,
				"--flags", spec.flags,
			},
			Dir: mirror,
		}
		fmt.Fprintf(log, "-- %s\n", cmd)
		return o.runner.Run(ctx, cmd, log)
	}
	return fmt.Errorf("unknown build kind %d", plan.kind)
}

// resolveScript finds a script given either as a path (absolute or relative
// to the working directory captured at construction) or as a command on PATH.
func (o *Oracle) resolveScript(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.workDir, path)
	}
	if fileExists(path) {
		return path, nil
	}
	return o.runner.LookPath(name)
}

// mirrorTree recreates the directory structure of src under dst with every
// file replaced by a symlink to the original.
func mirrorTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return os.Symlink(path, target)
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flagsearch/internal/oracle"
	"github.com/roach88/flagsearch/internal/testutil"
)

// fakeToolchain stands in for cmake, make and the measure script. cmake
// remembers the flags of each install prefix; the measure script scores
// them with score.
type fakeToolchain struct {
	version string
	score   func(flags string) float64

	mu    sync.Mutex
	flags map[string]string
}

func newFakeToolchain(score func(flags string) float64) *fakeToolchain {
	return &fakeToolchain{version: "12.2.0", score: score, flags: make(map[string]string)}
}

func (f *fakeToolchain) Run(ctx context.Context, cmd oracle.Command, out io.Writer) error {
	if len(cmd.Args) == 1 && cmd.Args[0] == "-dumpversion" {
		_, err := fmt.Fprintln(out, f.version)
		return err
	}

	switch filepath.Base(cmd.Path) {
	case "cmake":
		var flags, prefix string
		for _, arg := range cmd.Args {
			if v, ok := strings.CutPrefix(arg, "-DCMAKE_C_FLAGS="); ok {
				flags = v
			}
			if v, ok := strings.CutPrefix(arg, "-DCMAKE_INSTALL_PREFIX="); ok {
				prefix = v
			}
		}
		f.mu.Lock()
		f.flags[prefix] = flags
		f.mu.Unlock()
	case "measure.sh":
		f.mu.Lock()
		flags := f.flags[argAfter(cmd.Args, "--install-dir")]
		f.mu.Unlock()
		score := f.score(flags)
		if score <= 0 {
			return errors.New("exit status 1")
		}
		row := fmt.Sprintf("/src/a.c,module,a,result,1,size,%g\n", score)
		return os.WriteFile(argAfter(cmd.Args, "--out"), []byte(row), 0644)
	}
	return nil
}

func (f *fakeToolchain) LookPath(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// projectScore scores the test catalog: disabling -fa saves 20, disabling
// -fc costs a quarter, -fb changes nothing.
func projectScore(flags string) float64 {
	switch {
	case strings.Contains(flags, "-O3"):
		return 80
	case strings.Contains(flags, "-Os"):
		return 64
	}
	score := 100.0
	if strings.Contains(flags, "-fno-a") {
		score -= 20
	}
	if strings.Contains(flags, "-fno-c") {
		score *= 1.25
	}
	return score
}

// projectCatalog has -fb only from version 13 on.
const projectCatalog = `toolchain: "gcc"
flags: [
	{id: "-fa"},
	{id: "-fb", since: "13"},
	{id: "-fc"},
]
`

// searchProject lays out a CMake project, a catalog and a config file
// pointing at them with paths relative to the config file.
type searchProject struct {
	root   string
	config string
}

func newSearchProject(t *testing.T) searchProject {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "CMakeLists.txt"), []byte("project(bench C)\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "flags.cue"), []byte(projectCatalog), 0644))

	config := `src_dir: src
build_dir: build
install_dir: install
wrapper_prefix: ""
measure_script: measure.sh
catalog: flags.cue
toolchain_version: "12"
`
	path := filepath.Join(root, "search.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0644))
	return searchProject{root: root, config: path}
}

// newTestSearchCommand returns a search command running its builds on
// runner and numbering sessions sequentially.
func newTestSearchCommand(format string, runner oracle.Runner) *cobra.Command {
	return newSearchCommand(&SearchOptions{
		RootOptions: &RootOptions{Format: format},
		flags:       defaultSearchConfig(),
		Runner:      runner,
		IDs:         testutil.NewSequentialIDs("search"),
	})
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

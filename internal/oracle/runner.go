package oracle

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command is an external process invocation.
type Command struct {
	// Path is the executable, either absolute or resolved through PATH.
	Path string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes external commands.
// Implemented by ExecRunner (production) and fakes in tests.
type Runner interface {
	// Run executes cmd to completion, writing stdout and stderr to out.
	// A non-zero exit status is an error.
	Run(ctx context.Context, cmd Command, out io.Writer) error

	// LookPath resolves an executable name through PATH.
	LookPath(file string) (string, error)
}

// ExecRunner runs commands with os/exec.
//
// Thread-safety: ExecRunner is stateless and safe for concurrent use.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command, out io.Writer) error {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = out
	c.Stderr = out
	if err := c.Run(); err != nil {
		return fmt.Errorf("run %s: %w", cmd.Path, err)
	}
	return nil
}

// LookPath implements Runner.
func (ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

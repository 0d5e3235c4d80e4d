package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrSubprocess marks a restore step whose process could not start or exited non-zero
var ErrSubprocess = errors.New("restore: subprocess failed")

// Runner starts one external process and waits for it
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs processes with os/exec, streaming their output
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    *slog.Logger
}

// Run starts the command and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if r.Log != nil {
		r.Log.Debug("running", "cmd", name+" "+strings.Join(args, " "))
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubprocess, name, err)
	}
	return nil
}

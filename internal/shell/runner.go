// Package shell runs stage commands through "sh -c" in the workspace.
package shell

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// Runner executes commands in Dir with Env appended to the process environment.
type Runner struct {
	Dir string
	Env []string
	// Shell defaults to "sh".
	Shell string
}

// New returns a Runner for dir.
func New(dir string, env ...string) *Runner {
	return &Runner{Dir: dir, Env: env}
}

// Run executes command and captures stdout and stderr separately.
func (r *Runner) Run(ctx context.Context, command string) (ci.ShellResult, error) {
	sh := r.Shell
	if sh == "" {
		sh = "sh"
	}
	cmd := exec.CommandContext(ctx, sh, "-c", command) // #nosec G204 -- commands come from pipeline configuration
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := ci.ShellResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	slog.Debug("Shell command finished",
		logfields.Command(command),
		slog.Int("exit_code", res.ExitCode),
		logfields.Elapsed(time.Since(start)))

	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("command %q interrupted: %w", command, ctxErr)
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return res, errors.WrapError(err, errors.CategoryShell, fmt.Sprintf("command exited with status %d", res.ExitCode)).
			WithContext("command", command).
			WithContext("stderr", tail(res.Stderr, 2048)).
			Build()
	}
	return res, errors.WrapError(err, errors.CategoryShell, "command could not start").
		WithContext("command", command).Build()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

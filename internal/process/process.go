package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"movefuzz/config"
	"movefuzz/internal/plan"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ErrSubprocessFailure is wrapped by every *ExitError.
var ErrSubprocessFailure = errors.New("subprocess failed")

// ExitError reports a child that exited nonzero or was killed by a signal.
// Exactly one of Code and Signal is meaningful: Signal is zero for a normal exit.
type ExitError struct {
	Command string
	Code    int
	Signal  syscall.Signal
}

func (e *ExitError) Error() string {
	if e.Signal != 0 {
		return fmt.Sprintf("%q terminated by signal %v", e.Command, e.Signal)
	}
	return fmt.Sprintf("%q exited with status %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error {
	return ErrSubprocessFailure
}

// Runner spawns a compiled command and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, cmd plan.Command, stdout, stderr io.Writer) error
}

type ExecRunner struct {
	logger      *zap.Logger
	gracePeriod time.Duration
}

func NewExecRunner(appConfig *config.AppConfig, logger *zap.Logger) *ExecRunner {
	return &ExecRunner{
		logger:      logger.Named("process"),
		gracePeriod: appConfig.GracePeriod,
	}
}

// Run starts cmd with its output wired to stdout and stderr. When ctx is done
// the child gets SIGINT, then SIGKILL after the grace period.
func (r *ExecRunner) Run(ctx context.Context, cmd plan.Command, stdout, stderr io.Writer) error {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = stdout
	c.Stderr = stderr
	c.Cancel = func() error {
		return c.Process.Signal(syscall.SIGINT)
	}
	c.WaitDelay = r.gracePeriod

	r.logger.Info("running command", zap.String("command", cmd.String()))
	start := time.Now()
	err := c.Run()
	r.logger.Debug("command finished", zap.String("program", cmd.Program), zap.Duration("elapsed", time.Since(start)))
	return exitError(cmd, err)
}

func exitError(cmd plan.Command, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("failed to run %s: %w", cmd.Program, err)
	}
	result := &ExitError{Command: cmd.String(), Code: exitErr.ExitCode()}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		result.Signal = status.Signal()
	}
	return result
}

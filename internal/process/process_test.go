package process

import (
	"bytes"
	"context"
	"errors"
	"movefuzz/config"
	"movefuzz/internal/plan"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRunner(t *testing.T) *ExecRunner {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
	return NewExecRunner(&config.AppConfig{GracePeriod: time.Second}, zaptest.NewLogger(t))
}

func shell(script string) plan.Command {
	return plan.Command{Program: "sh", Args: []string{"-c", script}, Env: os.Environ()}
}

func TestRunSuccess(t *testing.T) {
	r := newRunner(t)
	var stdout, stderr bytes.Buffer
	err := r.Run(context.Background(), shell("echo out; echo err >&2"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestRunExitCode(t *testing.T) {
	r := newRunner(t)
	err := r.Run(context.Background(), shell("exit 3"), nil, nil)
	require.ErrorIs(t, err, ErrSubprocessFailure)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Zero(t, exitErr.Signal)
}

func TestRunSignal(t *testing.T) {
	r := newRunner(t)
	err := r.Run(context.Background(), shell("kill -TERM $$"), nil, nil)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, syscall.SIGTERM, exitErr.Signal)
	assert.Contains(t, exitErr.Error(), "signal")
}

func TestRunCancelSendsInterrupt(t *testing.T) {
	r := newRunner(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := r.Run(ctx, shell("exec sleep 30"), nil, nil)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	// SIGKILL follows when SIGINT was inherited as ignored.
	assert.Contains(t, []syscall.Signal{syscall.SIGINT, syscall.SIGKILL}, exitErr.Signal)
}

func TestRunMissingProgram(t *testing.T) {
	r := newRunner(t)
	err := r.Run(context.Background(), plan.Command{Program: "/nonexistent/move-fuzz-target"}, nil, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSubprocessFailure))
}

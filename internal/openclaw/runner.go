package openclaw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// DefaultTimeout bounds a single openclaw invocation.
const DefaultTimeout = 30 * time.Second

const waitDelay = time.Second

// Result is the outcome of one invocation: Stdout on success, Err otherwise.
// Failures never escape as panics or Go errors from Run.
type Result struct {
	Stdout string
	Err    string
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Err == "" }

// Executor runs openclaw subcommands. Runner is the real implementation;
// tests substitute fakes.
type Executor interface {
	Run(ctx context.Context, args ...string) Result
	Detach(args ...string) error
	Binary() string
}

// Runner executes the openclaw binary as a child process.
type Runner struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner for binary. A zero timeout uses DefaultTimeout.
func NewRunner(binary string, timeout time.Duration, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = "openclaw"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{binary: binary, timeout: timeout, logger: logger}
}

// Binary returns the configured binary path.
func (r *Runner) Binary() string { return r.binary }

// LookPath resolves the binary, reporting whether it can be executed.
func (r *Runner) LookPath() (string, error) {
	path, err := exec.LookPath(r.binary)
	if err != nil {
		return "", fmt.Errorf("openclaw binary %q not found: %w", r.binary, err)
	}
	return path, nil
}

// Run executes the binary with args and waits for it to exit.
func (r *Runner) Run(ctx context.Context, args ...string) Result {
	cmdline := r.commandLine(args)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	// Grandchildren holding stdout open must not outlive the deadline.
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start).Round(time.Millisecond)

	if err == nil {
		r.logger.Debug("openclaw ok", "cmd", cmdline, "elapsed", elapsed)
		return Result{Stdout: stdout.String()}
	}

	msg := failureMessage(ctx, err, stdout.String(), stderr.String(), r.timeout)
	r.logger.Debug("openclaw failed", "cmd", cmdline, "elapsed", elapsed, "error", msg)
	return Result{Err: msg}
}

// Detach starts the binary in its own session and returns without waiting.
// The child is reaped in the background so it never lingers as a zombie.
func (r *Runner) Detach(args ...string) error {
	cmd := exec.Command(r.binary, args...)
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.commandLine(args), err)
	}
	r.logger.Debug("openclaw detached", "cmd", r.commandLine(args), "pid", cmd.Process.Pid)
	go func() { _ = cmd.Wait() }()
	return nil
}

func (r *Runner) commandLine(args []string) string {
	return shellescape.QuoteCommand(append([]string{r.binary}, args...))
}

func failureMessage(ctx context.Context, err error, stdout, stderr string, timeout time.Duration) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return "cancelled"
	}

	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = strings.TrimSpace(stdout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if detail == "" {
			return fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		return fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), detail)
	}
	if detail != "" {
		return fmt.Sprintf("%v: %s", err, detail)
	}
	return err.Error()
}

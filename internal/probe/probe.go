package probe

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
)

// Sentinel errors returned by Runner implementations. Callers test them with
// errors.Is; the engine converts them into degraded report fields.
var (
	// ErrNotFound means the tool is absent from PATH and every search path.
	ErrNotFound = errors.New("probe: tool not found")

	// ErrTimedOut means the command exceeded its per-invocation timeout and
	// was killed.
	ErrTimedOut = errors.New("probe: command timed out")

	// ErrPermissionDenied means the tool ran but reported that it lacks the
	// privileges to open the device. The Result is still returned.
	ErrPermissionDenied = errors.New("probe: permission denied")
)

// waitDelay bounds how long Wait blocks on pipes after the process is killed,
// so a grandchild holding stdout open cannot stall the run.
const waitDelay = 500 * time.Millisecond

// Result is the captured outcome of one external invocation.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Output returns stdout and stderr joined, which is what most parsers scan.
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Runner executes one external diagnostic command.
//
// A non-zero exit code alone is not an error: tools such as smartctl encode
// findings in their exit status, so callers inspect Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// Exec runs commands as child processes. Each call gets its own timeout.
type Exec struct {
	resolver *Resolver
	timeout  time.Duration
}

// NewExec returns an Exec that resolves tools through resolver and kills any
// command still running after timeout.
func NewExec(resolver *Resolver, timeout time.Duration) *Exec {
	return &Exec{resolver: resolver, timeout: timeout}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	path, err := e.resolver.Lookup(name)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Command:  commandLine(name, args),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	// The parent context wins: a cancelled run is not a timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		slog.Debug("probe: command timed out", "cmd", res.Command, "timeout", e.timeout)
		return res, fmt.Errorf("%w: %s after %s", ErrTimedOut, res.Command, e.timeout)
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return res, fmt.Errorf("probe: run %s: %w", res.Command, runErr)
	}

	slog.Debug("probe: command finished",
		"cmd", res.Command, "exit", res.ExitCode, "duration", res.Duration)

	if PermissionDenied(res.Output()) {
		return res, fmt.Errorf("%w: %s", ErrPermissionDenied, res.Command)
	}
	return res, nil
}

// PermissionDenied reports whether tool output carries one of the kernel's
// access-refused messages.
func PermissionDenied(output string) bool {
	return strings.Contains(output, "Permission denied") ||
		strings.Contains(output, "Operation not permitted")
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

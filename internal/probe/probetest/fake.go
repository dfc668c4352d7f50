// Package probetest provides a scripted probe.Runner for tests.
package probetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/obsidianstack/diskhealth/internal/probe"
)

// Response is the canned outcome for one command line.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Err is returned as-is, e.g. probe.ErrNotFound.
	Err error

	// Delay simulates a slow tool. When it exceeds Fake.Timeout the call
	// fails with probe.ErrTimedOut after Timeout has elapsed.
	Delay time.Duration
}

// Fake is a probe.Runner keyed by the full command line ("smartctl -H -A
// /dev/sda"). Unknown commands behave like a missing tool.
//
// Like probe.Exec, a response whose output reports a permission failure is
// returned together with probe.ErrPermissionDenied.
type Fake struct {
	Responses map[string]Response

	// Timeout is the simulated per-invocation limit; zero means none.
	Timeout time.Duration

	mu        sync.Mutex
	calls     []string
	inFlight  int
	maxFlight int
}

// New returns a Fake serving responses.
func New(responses map[string]Response) *Fake {
	return &Fake{Responses: responses}
}

// Run implements probe.Runner.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (*probe.Result, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	resp, ok := f.Responses[key]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if !ok {
		return nil, fmt.Errorf("%w: %s", probe.ErrNotFound, name)
	}

	if resp.Delay > 0 {
		wait := resp.Delay
		timedOut := f.Timeout > 0 && resp.Delay > f.Timeout
		if timedOut {
			wait = f.Timeout
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if timedOut {
			return nil, fmt.Errorf("%w: %s", probe.ErrTimedOut, key)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &probe.Result{
		Command:  key,
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Duration: resp.Delay,
	}
	if resp.Err != nil {
		return res, resp.Err
	}
	if probe.PermissionDenied(res.Output()) {
		return res, fmt.Errorf("%w: %s", probe.ErrPermissionDenied, key)
	}
	return res, nil
}

// Calls returns every command line run so far, in call order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether a command line starting with prefix was run.
func (f *Fake) Called(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// MaxConcurrent returns the highest number of simultaneous Run calls seen.
func (f *Fake) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFlight
}

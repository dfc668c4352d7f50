package probe_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/obsidianstack/diskhealth/internal/probe"
	"github.com/obsidianstack/diskhealth/internal/probe/probetest"
)

func newExec(t *testing.T, timeout time.Duration) *probe.Exec {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return probe.NewExec(probe.NewResolver(nil), timeout)
}

func TestExec_CapturesOutputAndExitCode(t *testing.T) {
	e := newExec(t, 5*time.Second)

	res, err := e.Run(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for non-zero exit", err)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestExec_Timeout(t *testing.T) {
	e := newExec(t, 200*time.Millisecond)

	start := time.Now()
	_, err := e.Run(context.Background(), "sh", "-c", "sleep 10")
	elapsed := time.Since(start)

	if !errors.Is(err, probe.ErrTimedOut) {
		t.Fatalf("Run() error = %v, want ErrTimedOut", err)
	}
	// timeout + WaitDelay + scheduling slack
	if elapsed > 3*time.Second {
		t.Errorf("Run() took %v, expected the process to be killed near the timeout", elapsed)
	}
}

func TestExec_ParentCancelIsNotTimeout(t *testing.T) {
	e := newExec(t, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := e.Run(ctx, "sh", "-c", "sleep 10")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, probe.ErrTimedOut) {
		t.Error("cancelled run must not be reported as a timeout")
	}
}

func TestExec_NotFound(t *testing.T) {
	e := newExec(t, time.Second)

	_, err := e.Run(context.Background(), "diskhealth-no-such-tool")
	if !errors.Is(err, probe.ErrNotFound) {
		t.Fatalf("Run() error = %v, want ErrNotFound", err)
	}
}

func TestExec_PermissionDenied(t *testing.T) {
	e := newExec(t, 5*time.Second)

	res, err := e.Run(context.Background(), "sh", "-c",
		`echo "Smartctl open device: /dev/sda failed: Permission denied" >&2; exit 2`)
	if !errors.Is(err, probe.ErrPermissionDenied) {
		t.Fatalf("Run() error = %v, want ErrPermissionDenied", err)
	}
	if res == nil || res.ExitCode != 2 {
		t.Fatalf("Result should be returned for diagnostics, got %+v", res)
	}
}

func TestResolver_SearchPathFallback(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "diskhealth-test-tool")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	// A non-executable file of the same shape must be skipped.
	if err := os.WriteFile(filepath.Join(dir, "diskhealth-not-exec"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := probe.NewResolver([]string{filepath.Join(dir, "missing"), dir})

	got, err := r.Lookup("diskhealth-test-tool")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got != tool {
		t.Errorf("Lookup() = %q, want %q", got, tool)
	}
	if r.Available("diskhealth-not-exec") {
		t.Error("non-executable file reported as available")
	}

	// Cached: removing the file does not change the answer.
	if err := os.Remove(tool); err != nil {
		t.Fatal(err)
	}
	if got, err := r.Lookup("diskhealth-test-tool"); err != nil || got != tool {
		t.Errorf("cached Lookup() = %q, %v", got, err)
	}
}

func TestLimit_CapsConcurrency(t *testing.T) {
	fake := probetest.New(map[string]probetest.Response{
		"smartctl -H -A /dev/sda": {Stdout: "ok", Delay: 30 * time.Millisecond},
	})
	r := probe.Limit(fake, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Run(context.Background(), "smartctl", "-H", "-A", "/dev/sda"); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fake.MaxConcurrent(); got > 2 {
		t.Errorf("max concurrent = %d, want <= 2", got)
	}
	if got := len(fake.Calls()); got != 8 {
		t.Errorf("calls = %d, want 8", got)
	}
}

func TestLimit_WaitHonoursContext(t *testing.T) {
	fake := probetest.New(map[string]probetest.Response{
		"slow": {Delay: time.Second},
	})
	r := probe.Limit(fake, 1)

	go r.Run(context.Background(), "slow") //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Run(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want DeadlineExceeded while waiting for a slot", err)
	}
}

func TestFake_SimulatedTimeout(t *testing.T) {
	fake := probetest.New(map[string]probetest.Response{
		"dumpe2fs -h /dev/sdb1": {Delay: time.Hour},
	})
	fake.Timeout = 20 * time.Millisecond

	_, err := fake.Run(context.Background(), "dumpe2fs", "-h", "/dev/sdb1")
	if !errors.Is(err, probe.ErrTimedOut) {
		t.Fatalf("Run() error = %v, want ErrTimedOut", err)
	}
}

package fscheck

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

var (
	reExtState      = regexp.MustCompile(`(?m)^Filesystem state:\s*(.+)$`)
	reExtMountCount = regexp.MustCompile(`(?m)^Mount count:\s*(-?\d+)`)
	reExtMaxMount   = regexp.MustCompile(`(?m)^Maximum mount count:\s*(-?\d+)`)
	reExtLastCheck  = regexp.MustCompile(`(?m)^Last checked:\s*(.+)$`)
)

// ParseError reports checker output that lacked the fields needed for a
// verdict.
type ParseError struct {
	Tool   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fscheck: parse %s output: %s", e.Tool, e.Reason)
}

// ParseDumpe2fs reads the superblock summary printed by `dumpe2fs -h`.
//
// A max mount count of -1 or 0 disables count-based checking and is
// reported as nil. NeedsCheck is set when the state is not clean or the
// mount count reached an enabled maximum.
func ParseDumpe2fs(text string) (*model.FilesystemCheck, error) {
	m := reExtState.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Tool: "dumpe2fs", Reason: "no filesystem state"}
	}
	state := strings.TrimSpace(m[1])
	clean := state == StateClean

	chk := &model.FilesystemCheck{
		Clean: model.Ptr(clean),
		State: state,
	}
	if m := reExtMountCount.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			chk.MountCount = model.Ptr(n)
		}
	}
	if m := reExtMaxMount.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			chk.MaxMountCount = model.Ptr(n)
		}
	}
	if m := reExtLastCheck.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse(time.ANSIC, strings.TrimSpace(m[1])); err == nil {
			chk.LastChecked = model.Ptr(t)
		}
	}

	chk.NeedsCheck = !clean
	if chk.MountCount != nil && chk.MaxMountCount != nil && *chk.MountCount >= *chk.MaxMountCount {
		chk.NeedsCheck = true
	}
	chk.Corrupt = strings.Contains(state, "error")
	return chk, nil
}

// extChecker covers ext2, ext3 and ext4.
type extChecker struct {
	runner probe.Runner
}

func (c extChecker) Check(ctx context.Context, p model.Partition) *model.FilesystemCheck {
	res, err := c.runner.Run(ctx, "dumpe2fs", "-h", p.Path)
	if err != nil {
		return degraded("dumpe2fs", err)
	}
	if res.ExitCode != 0 {
		return &model.FilesystemCheck{
			State: StateUnknown,
			Note:  fmt.Sprintf("dumpe2fs exited %d: %s", res.ExitCode, firstLine(res.Stderr)),
		}
	}
	chk, err := ParseDumpe2fs(res.Stdout)
	if err != nil {
		return &model.FilesystemCheck{State: StateUnknown, Note: err.Error()}
	}
	return chk
}

// SuggestRepair forces a full check and answers yes to every fix.
func (c extChecker) SuggestRepair(p model.Partition, _ *model.FilesystemCheck) string {
	return fmt.Sprintf("fsck.%s -f -y %s", p.FS(), p.Path)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

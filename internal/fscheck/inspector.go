package fscheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// State strings recorded on a FilesystemCheck.
const (
	StateClean       = "clean"
	StateUnknown     = "unknown"
	StateUnsupported = "unsupported"
)

// Checker runs a read-only consistency probe for one filesystem family and
// derives the command an operator would run to repair it.
type Checker interface {
	Check(ctx context.Context, p model.Partition) *model.FilesystemCheck

	// SuggestRepair returns the repair command line, or "" when none
	// applies. res may be nil when no check was run.
	SuggestRepair(p model.Partition, res *model.FilesystemCheck) string
}

// recommender is implemented by checkers that have advice no command
// line can express.
type recommender interface {
	Recommend(p model.Partition) string
}

// checkTools names the binary each filesystem's read-only check runs.
var checkTools = map[string]string{
	"ext2":  "dumpe2fs",
	"ext3":  "dumpe2fs",
	"ext4":  "dumpe2fs",
	"xfs":   "xfs_repair",
	"btrfs": "btrfs",
	"ntfs":  "ntfsfix",
	"vfat":  "fsck.vfat",
	"exfat": "fsck.exfat",
}

// Tools returns the check binaries needed for cfg.SupportedFS, in
// allow-list order without duplicates. It is empty when checks are off.
func Tools(cfg config.Filesystem) []string {
	if !cfg.CheckUnmounted {
		return nil
	}
	var tools []string
	seen := make(map[string]bool)
	for _, fs := range cfg.SupportedFS {
		tool, ok := checkTools[fs]
		if !ok || seen[tool] {
			continue
		}
		seen[tool] = true
		tools = append(tools, tool)
	}
	return tools
}

// Inspector identifies and checks unmounted partitions.
type Inspector struct {
	runner    probe.Runner
	cfg       config.Filesystem
	checkers  map[string]Checker
	fallback  Checker
	supported map[string]bool
}

// New builds the fstype registry. cfg gates which partitions are checked;
// run_fsck is accepted but never acted on.
func New(runner probe.Runner, cfg config.Filesystem) *Inspector {
	ext := extChecker{runner: runner}
	fat := func(fstype string, errorExits []int, repairFlags ...string) Checker {
		return fatChecker{runner: runner, fstype: fstype, errorExits: errorExits, repairFlags: repairFlags}
	}

	i := &Inspector{
		runner: runner,
		cfg:    cfg,
		checkers: map[string]Checker{
			"ext2":  ext,
			"ext3":  ext,
			"ext4":  ext,
			"xfs":   xfsChecker{runner: runner},
			"btrfs": btrfsChecker{runner: runner},
			"ntfs":  ntfsChecker{runner: runner},
			"vfat":  fat("vfat", []int{1}, "-a"),
			"exfat": fat("exfat", []int{1, 4}),
		},
		fallback:  noopChecker{},
		supported: make(map[string]bool, len(cfg.SupportedFS)),
	}
	for _, fs := range cfg.SupportedFS {
		i.supported[fs] = true
	}
	if cfg.RunFsck {
		slog.Warn("fscheck: filesystem.run_fsck is ignored, checks are always read-only")
	}
	return i
}

// Inspect identifies p and, when enabled for its fstype, checks it. The
// returned notes describe degraded probes for the drive record.
func (i *Inspector) Inspect(ctx context.Context, p model.Partition) (model.Partition, []string) {
	var notes []string

	p, note := i.Identify(ctx, p)
	if note != "" {
		notes = append(notes, fmt.Sprintf("%s: %s", p.Name, note))
	}

	c := i.checkerFor(p.FS())
	if i.cfg.CheckUnmounted {
		p.Check = c.Check(ctx, p)
		if p.Check != nil && p.Check.Note != "" && p.Check.Clean == nil && p.Check.State != StateUnsupported {
			notes = append(notes, fmt.Sprintf("%s: %s", p.Name, p.Check.Note))
		}
	}
	p.RepairCommand = c.SuggestRepair(p, p.Check)
	if r, ok := c.(recommender); ok {
		p.Recommendation = r.Recommend(p)
	}
	return p, notes
}

// Check dispatches to the checker registered for p's fstype. Filesystems
// outside the registry or the supported_fs allow-list get the no-op
// checker.
func (i *Inspector) Check(ctx context.Context, p model.Partition) *model.FilesystemCheck {
	return i.checkerFor(p.FS()).Check(ctx, p)
}

func (i *Inspector) checkerFor(fstype string) Checker {
	if !i.supported[fstype] {
		return i.fallback
	}
	if c, ok := i.checkers[fstype]; ok {
		return c
	}
	return i.fallback
}

// degraded records a probe that could not produce a verdict. Clean stays
// nil so the scorer does not count it either way.
func degraded(tool string, err error) *model.FilesystemCheck {
	var note string
	switch {
	case errors.Is(err, probe.ErrNotFound):
		note = tool + " not installed"
	case errors.Is(err, probe.ErrPermissionDenied):
		note = tool + " requires root"
	case errors.Is(err, probe.ErrTimedOut):
		note = tool + " timed out"
	default:
		note = fmt.Sprintf("%s failed: %v", tool, err)
	}
	return &model.FilesystemCheck{State: StateUnknown, Note: note}
}

type noopChecker struct{}

func (noopChecker) Check(_ context.Context, p model.Partition) *model.FilesystemCheck {
	note := "no read-only check available"
	if fs := p.FS(); fs != "" {
		note = "no read-only check available for " + fs
	}
	return &model.FilesystemCheck{State: StateUnsupported, Note: note}
}

func (noopChecker) SuggestRepair(model.Partition, *model.FilesystemCheck) string { return "" }

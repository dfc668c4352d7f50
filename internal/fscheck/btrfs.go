package fscheck

import (
	"context"
	"strings"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

type btrfsChecker struct {
	runner probe.Runner
}

func (c btrfsChecker) Check(ctx context.Context, p model.Partition) *model.FilesystemCheck {
	res, err := c.runner.Run(ctx, "btrfs", "check", "--readonly", p.Path)
	if err != nil {
		return degraded("btrfs check", err)
	}

	if res.ExitCode != 0 || strings.Contains(res.Output(), "ERROR:") {
		return &model.FilesystemCheck{
			Clean:      model.Ptr(false),
			NeedsCheck: true,
			Corrupt:    true,
			State:      "errors found",
			Note:       firstLine(res.Stderr),
		}
	}
	return &model.FilesystemCheck{Clean: model.Ptr(true), State: StateClean}
}

// SuggestRepair adds --repair only when the read-only check found errors.
func (c btrfsChecker) SuggestRepair(p model.Partition, res *model.FilesystemCheck) string {
	if res != nil && res.Corrupt {
		return "btrfs check --repair " + p.Path
	}
	return "btrfs check " + p.Path
}

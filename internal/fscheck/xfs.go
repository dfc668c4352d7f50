package fscheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// xfs_repair -n exit statuses.
const (
	xfsCorrupt  = 1
	xfsDirtyLog = 2
)

type xfsChecker struct {
	runner probe.Runner
}

// Check runs `xfs_repair -n`, which never modifies the device.
func (c xfsChecker) Check(ctx context.Context, p model.Partition) *model.FilesystemCheck {
	res, err := c.runner.Run(ctx, "xfs_repair", "-n", p.Path)
	if err != nil {
		return degraded("xfs_repair", err)
	}
	return parseXFSRepair(res)
}

func parseXFSRepair(res *probe.Result) *model.FilesystemCheck {
	out := strings.ToLower(res.Output())

	switch {
	case res.ExitCode == xfsCorrupt || strings.Contains(out, "corrupt"):
		return &model.FilesystemCheck{
			Clean:      model.Ptr(false),
			NeedsCheck: true,
			Corrupt:    true,
			State:      "corrupt",
		}
	case res.ExitCode == xfsDirtyLog:
		// The log replays on the next mount; the metadata itself is intact.
		return &model.FilesystemCheck{
			Clean: model.Ptr(true),
			State: "dirty log",
			Note:  "mount the filesystem once to replay its log",
		}
	case res.ExitCode != 0:
		return &model.FilesystemCheck{
			State: StateUnknown,
			Note:  fmt.Sprintf("xfs_repair exited %d", res.ExitCode),
		}
	}
	return &model.FilesystemCheck{Clean: model.Ptr(true), State: StateClean}
}

// SuggestRepair proposes xfs_repair only for corruption the check found.
// XFS has no fsck.xfs worth running and takes no ext-style flags.
func (c xfsChecker) SuggestRepair(p model.Partition, res *model.FilesystemCheck) string {
	if res == nil || !res.Corrupt {
		return ""
	}
	return "xfs_repair " + p.Path
}

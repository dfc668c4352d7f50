package fscheck

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// fatChecker covers vfat and exfat through their fsck.<fstype> front ends.
// errorExits are the exit statuses that mean the check found errors; any
// other non-zero status is an operational failure with no verdict.
type fatChecker struct {
	runner      probe.Runner
	fstype      string
	errorExits  []int
	repairFlags []string
}

// Check runs `fsck.<fstype> -n`, which reports without writing.
func (c fatChecker) Check(ctx context.Context, p model.Partition) *model.FilesystemCheck {
	tool := "fsck." + c.fstype
	res, err := c.runner.Run(ctx, tool, "-n", p.Path)
	if err != nil {
		return degraded(tool, err)
	}
	switch {
	case res.ExitCode == 0:
		return &model.FilesystemCheck{Clean: model.Ptr(true), State: StateClean}
	case slices.Contains(c.errorExits, res.ExitCode):
		return &model.FilesystemCheck{
			Clean:      model.Ptr(false),
			NeedsCheck: true,
			Corrupt:    true,
			State:      "errors found",
			Note:       firstLine(res.Stdout),
		}
	}
	return &model.FilesystemCheck{
		State: StateUnknown,
		Note:  fmt.Sprintf("%s exited %d: %s", tool, res.ExitCode, firstLine(res.Output())),
	}
}

func (c fatChecker) SuggestRepair(p model.Partition, _ *model.FilesystemCheck) string {
	parts := append([]string{"fsck." + c.fstype}, c.repairFlags...)
	return strings.Join(append(parts, p.Path), " ")
}

package fscheck

import (
	"context"
	"strings"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// ntfsChecker is reduced fidelity: ntfsfix only inspects the volume flags.
type ntfsChecker struct {
	runner probe.Runner
}

func (c ntfsChecker) Check(ctx context.Context, p model.Partition) *model.FilesystemCheck {
	res, err := c.runner.Run(ctx, "ntfsfix", "--no-action", p.Path)
	if err != nil {
		return degraded("ntfsfix", err)
	}

	out := strings.ToLower(res.Output())
	switch {
	case strings.Contains(out, "hibernat"):
		return &model.FilesystemCheck{
			Clean:      model.Ptr(false),
			NeedsCheck: true,
			State:      "hibernated",
			Note:       "Windows left the volume hibernated or fast-started",
		}
	case strings.Contains(out, "corrupt"), strings.Contains(out, "inconsistent"), res.ExitCode != 0:
		return &model.FilesystemCheck{
			Clean:      model.Ptr(false),
			NeedsCheck: true,
			Corrupt:    true,
			State:      "inconsistent",
		}
	}
	return &model.FilesystemCheck{Clean: model.Ptr(true), State: StateClean}
}

// SuggestRepair returns nothing: ntfsfix only resets the journal, so no
// native command is a real repair.
func (ntfsChecker) SuggestRepair(model.Partition, *model.FilesystemCheck) string { return "" }

func (ntfsChecker) Recommend(model.Partition) string {
	return "repair from Windows with: chkdsk /f"
}

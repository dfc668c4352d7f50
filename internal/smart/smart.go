package smart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// Assessor runs the SMART probe for one drive at a time.
type Assessor struct {
	runner probe.Runner
	isRoot bool
}

// NewAssessor returns an Assessor. isRoot changes how a missing health line
// is read: unprivileged smartctl often prints only the banner.
func NewAssessor(runner probe.Runner, isRoot bool) *Assessor {
	return &Assessor{runner: runner, isRoot: isRoot}
}

// Assess invokes `smartctl -H -A <path>` once and never returns an error:
// every failure degrades to a verdict plus a note.
func (a *Assessor) Assess(ctx context.Context, drive model.Drive) model.SmartReport {
	res, err := a.runner.Run(ctx, "smartctl", "-H", "-A", drive.Path)
	switch {
	case errors.Is(err, probe.ErrNotFound):
		return model.SmartReport{Verdict: model.VerdictUnknown, Note: "smartctl not installed"}
	case errors.Is(err, probe.ErrTimedOut):
		slog.Warn("smart: probe timed out", "device", drive.Path)
		return model.SmartReport{Verdict: model.VerdictUnknown, Note: "smartctl timed out"}
	case errors.Is(err, probe.ErrPermissionDenied):
		return model.SmartReport{Verdict: model.VerdictNeedRoot, Note: "smartctl requires root"}
	case err != nil:
		slog.Warn("smart: probe failed", "device", drive.Path, "err", err)
		return model.SmartReport{Verdict: model.VerdictUnknown, Note: err.Error()}
	}

	rep, err := Parse(res.Output())
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && !a.isRoot {
			rep.Verdict = model.VerdictNeedRoot
			rep.Note = "no health verdict without root"
			return rep
		}
		slog.Debug("smart: unparseable output", "device", drive.Path, "exit", res.ExitCode, "err", err)
		rep.Note = err.Error()
	}
	return rep
}

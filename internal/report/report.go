package report

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/obsidianstack/diskhealth/internal/model"
)

// Exit statuses derived from a finished run.
const (
	ExitOK          = 0
	ExitEngineError = 1
	ExitCritical    = 2
	ExitInterrupted = 130
)

// Meta is the run-level information stamped on a Report.
type Meta struct {
	Version   string
	Hostname  string
	IsRoot    bool
	Timestamp time.Time

	// Elapsed is the wall time of the whole run.
	Elapsed time.Duration
}

// Assemble orders the drive results and computes the summary. results is
// not modified.
//
// Scored drives come first, highest score first, ties broken by name. Failed
// drives follow, by name.
func Assemble(meta Meta, results []model.DriveResult) *model.Report {
	drives := append([]model.DriveResult(nil), results...)
	sort.SliceStable(drives, func(i, j int) bool {
		a, b := drives[i], drives[j]
		af, bf := a.Score == nil, b.Score == nil
		if af != bf {
			return bf
		}
		if !af && *a.Score != *b.Score {
			return *a.Score > *b.Score
		}
		return a.Name < b.Name
	})

	rep := &model.Report{
		Version:   meta.Version,
		Timestamp: meta.Timestamp,
		Hostname:  meta.Hostname,
		IsRoot:    meta.IsRoot,
		Drives:    drives,
	}
	rep.Summary = Summarize(drives)
	rep.Summary.ScanSeconds = meta.Elapsed.Seconds()
	return rep
}

// Summarize counts drives per class and partitions per mount state.
func Summarize(drives []model.DriveResult) model.Summary {
	var s model.Summary
	for _, d := range drives {
		switch {
		case d.State == model.StateFailed || d.Score == nil:
			s.Failed++
		case d.Class == model.ClassCritical:
			s.Critical++
		case d.Class == model.ClassWarning:
			s.Warning++
		case d.Class == model.ClassInfo:
			s.Info++
		default:
			s.Healthy++
		}
		for _, p := range d.Partitions {
			s.Partitions++
			if !p.Mounted() {
				s.Unmounted++
			}
		}
	}
	return s
}

// ExitCode maps a report to the process exit status: ExitCritical when any
// drive classified critical, ExitOK otherwise. Failed drives do not affect
// it.
func ExitCode(rep *model.Report) int {
	if rep != nil && rep.Summary.Critical > 0 {
		return ExitCritical
	}
	return ExitOK
}

var classRank = map[model.Class]int{
	model.ClassHealthy:  0,
	model.ClassInfo:     1,
	model.ClassWarning:  2,
	model.ClassCritical: 3,
}

// AtLeast reports whether c is as urgent as floor or more.
func AtLeast(c, floor model.Class) bool {
	rc, ok := classRank[c]
	if !ok {
		return false
	}
	return rc >= classRank[floor]
}

// Hostname returns the host name from gopsutil, falling back to the kernel's
// answer and then to "".
func Hostname(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err == nil && info.Hostname != "" {
		return info.Hostname
	}
	slog.Debug("report: host info unavailable", "err", err)
	name, _ := os.Hostname()
	return name
}

// IsRoot reports whether the process runs with an effective UID of 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

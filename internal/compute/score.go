package compute

import (
	"fmt"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/model"
)

// Rule keys recorded on each Issue.
const (
	RuleSmartFailed        = "smart_failed"
	RuleSmartUnknown       = "smart_unknown"
	RuleSmartNeedRoot      = "smart_need_root"
	RuleSmartNoSupport     = "smart_no_support"
	RuleReallocated        = "reallocated_sectors"
	RuleTempCritical       = "temp_critical"
	RuleTempWarning        = "temp_warning"
	RuleUsageCritical      = "usage_critical"
	RuleUsageWarning       = "usage_warning"
	RuleUsageInfo          = "usage_info"
	RuleUnmountedPartition = "unmounted_partition"
	RuleUncleanPartition   = "unclean_partition"
)

// Input holds one drive's reports. Nil reports mean the probe did not run
// or produced nothing; their rules are skipped.
type Input struct {
	Smart *model.SmartReport
	Usage *model.UsageReport

	// Partitions are the drive's partitions in enumeration order, with
	// Check set on unmounted ones that were inspected.
	Partitions []model.Partition
}

// Output is the result of scoring one drive.
type Output struct {
	// Score is the sum of every Issue's contribution; always >= 0.
	Score int

	// Issues are in detection order: SMART, reallocated sectors,
	// temperature, usage, then partitions.
	Issues []model.Issue

	Class model.Class
}

// Compute scores a drive. It is pure: the same input and thresholds always
// give the same output, and nothing outside the drive's own reports is
// consulted.
//
// Temperature and usage tiers are mutually exclusive; the highest matching
// tier fires and the others do not.
func Compute(in Input, th config.Thresholds) Output {
	out := Output{Issues: []model.Issue{}}
	add := func(sev model.Severity, points int, rule, msg string) {
		if points < 0 {
			points = 0
		}
		out.Score += points
		out.Issues = append(out.Issues, model.Issue{
			Severity:     sev,
			Contribution: points,
			Message:      msg,
			Rule:         rule,
		})
	}

	if s := in.Smart; s != nil {
		switch s.Verdict {
		case model.VerdictFailed:
			add(model.SeverityCritical, th.SmartFailScore, RuleSmartFailed, "SMART health check failed")
		case model.VerdictUnknown:
			add(model.SeverityWarning, th.SmartUnknownScore, RuleSmartUnknown, "SMART status unknown")
		case model.VerdictNeedRoot:
			add(model.SeverityInfo, th.SmartNeedRootScore, RuleSmartNeedRoot, "root privileges required for SMART check")
		case model.VerdictNoSupport:
			add(model.SeverityInfo, th.SmartNoSupportScore, RuleSmartNoSupport, "SMART not available on this device")
		}

		if n := s.ReallocatedSectors; n != nil && *n > 0 {
			add(model.SeverityWarning, th.ReallocatedSectorMultiplier*int(*n), RuleReallocated,
				fmt.Sprintf("%d reallocated sectors", *n))
		}

		if t := s.TemperatureC; t != nil {
			switch {
			case *t >= th.TempCritical:
				add(model.SeverityCritical, th.TempCriticalScore, RuleTempCritical,
					fmt.Sprintf("very high temperature: %d°C", *t))
			case *t >= th.TempWarning:
				add(model.SeverityWarning, th.TempWarningScore, RuleTempWarning,
					fmt.Sprintf("elevated temperature: %d°C", *t))
			}
		}
	}

	if u := in.Usage; u != nil {
		switch {
		case u.Percent >= th.UsageCritical:
			add(model.SeverityCritical, th.UsageCriticalScore, RuleUsageCritical,
				fmt.Sprintf("critically low disk space: %d%% used", u.Percent))
		case u.Percent >= th.UsageWarning:
			add(model.SeverityWarning, th.UsageWarningScore, RuleUsageWarning,
				fmt.Sprintf("low disk space: %d%% used", u.Percent))
		case u.Percent >= th.UsageInfo:
			add(model.SeverityInfo, th.UsageInfoScore, RuleUsageInfo,
				fmt.Sprintf("disk space getting low: %d%% used", u.Percent))
		}
	}

	for _, p := range in.Partitions {
		if p.Mounted() {
			continue
		}
		add(model.SeverityInfo, th.UnmountedPartitionScore, RuleUnmountedPartition,
			fmt.Sprintf("unmounted partition %s", p.Name))
		if p.Check.Unhealthy() {
			add(model.SeverityWarning, th.UncleanPartitionScore, RuleUncleanPartition,
				fmt.Sprintf("unmounted partition %s needs fsck (state: %s)", p.Name, stateOf(p.Check)))
		}
	}

	out.Class = Classify(out.Score, th)
	return out
}

// Classify buckets a score: critical at or above CriticalScore, warning at
// or above WarningScore, info above zero, healthy at zero.
func Classify(score int, th config.Thresholds) model.Class {
	switch {
	case score >= th.CriticalScore:
		return model.ClassCritical
	case score >= th.WarningScore:
		return model.ClassWarning
	case score > 0:
		return model.ClassInfo
	default:
		return model.ClassHealthy
	}
}

// Scorer binds one threshold set. A config reload builds a new Scorer.
type Scorer struct {
	th config.Thresholds
}

// NewScorer returns a Scorer for th.
func NewScorer(th config.Thresholds) *Scorer {
	return &Scorer{th: th}
}

// Score runs Compute with the bound thresholds.
func (s *Scorer) Score(in Input) Output {
	return Compute(in, s.th)
}

func stateOf(c *model.FilesystemCheck) string {
	switch {
	case c.Clean != nil && *c.Clean && c.NeedsCheck:
		return "check due"
	case c.State != "":
		return c.State
	default:
		return "not clean"
	}
}

package render

import (
	"fmt"

	"github.com/obsidianstack/diskhealth/internal/compute"
	"github.com/obsidianstack/diskhealth/internal/model"
)

// Section is one titled block of recommendations.
type Section struct {
	Title string
	Class model.Class
	Lines []string
}

// installHints name the package that provides each optional tool.
var installHints = map[string]string{
	"smartctl":   "smartmontools",
	"blkid":      "util-linux",
	"dumpe2fs":   "e2fsprogs",
	"xfs_repair": "xfsprogs",
	"btrfs":      "btrfs-progs",
	"ntfsfix":    "ntfs-3g",
	"fsck.vfat":  "dosfstools",
	"fsck.exfat": "exfatprogs",
}

var criticalActions = map[string]string{
	compute.RuleSmartFailed:   "back up now, the drive reports imminent failure",
	compute.RuleReallocated:   "plan a replacement, sectors are being remapped",
	compute.RuleTempCritical:  "check cooling, the drive is overheating",
	compute.RuleUsageCritical: "free disk space or migrate data urgently",
}

// Recommendations derives the advice shown after the drive list. Sections
// with nothing to say are omitted.
func Recommendations(rep *model.Report, opts Options) []Section {
	var out []Section

	crit := Section{Title: "CRITICAL - immediate action required", Class: model.ClassCritical}
	warn := Section{Title: "WARNING - attention required", Class: model.ClassWarning}
	fs := Section{Title: "Unmounted filesystem issues", Class: model.ClassWarning}

	for _, d := range rep.Drives {
		switch d.Class {
		case model.ClassCritical:
			crit.Lines = append(crit.Lines, d.Path+":")
			seen := make(map[string]bool)
			for _, is := range d.Issues {
				if a, ok := criticalActions[is.Rule]; ok && !seen[is.Rule] {
					seen[is.Rule] = true
					crit.Lines = append(crit.Lines, "  → "+a)
				}
			}
		case model.ClassWarning:
			warn.Lines = append(warn.Lines, d.Path+":")
			for _, is := range d.Issues {
				if is.Severity == model.SeverityWarning {
					warn.Lines = append(warn.Lines, "  → "+is.Message)
				}
			}
		}

		for _, p := range d.Partitions {
			if p.Mounted() || !p.Check.Unhealthy() {
				continue
			}
			fs.Lines = append(fs.Lines, fmt.Sprintf("%s on %s (%s)", p.Path, d.Name, fsDescription(p)))
			if p.Check.NeedsCheck && p.Check.Clean != nil && *p.Check.Clean {
				fs.Lines = append(fs.Lines, fmt.Sprintf("  → check recommended (mount count %s/%s)",
					intOrDash(p.Check.MountCount), intOrDash(p.Check.MaxMountCount)))
			} else {
				fs.Lines = append(fs.Lines, "  → filesystem needs checking (state: "+orDash(p.Check.State)+")")
			}
			if p.RepairCommand != "" {
				fs.Lines = append(fs.Lines, "  repair with: "+p.RepairCommand)
			}
			if p.Recommendation != "" {
				fs.Lines = append(fs.Lines, "  "+p.Recommendation)
			}
		}
	}

	for _, s := range []Section{crit, warn, fs} {
		if len(s.Lines) > 0 {
			out = append(out, s)
		}
	}

	if len(opts.MissingTools) > 0 && !opts.Quiet {
		s := Section{Title: "Missing optional tools", Class: model.ClassInfo}
		for _, tool := range opts.MissingTools {
			if pkg, ok := installHints[tool]; ok {
				s.Lines = append(s.Lines, fmt.Sprintf("%s (install %s)", tool, pkg))
			} else {
				s.Lines = append(s.Lines, tool)
			}
		}
		out = append(out, s)
	}

	if !rep.IsRoot && !opts.Quiet {
		out = append(out, Section{
			Title: "Note",
			Class: model.ClassInfo,
			Lines: []string{"run with sudo for SMART data and unmounted filesystem checks"},
		})
	}

	if !opts.CheckOnly {
		out = append(out, Section{
			Title: "Regular maintenance",
			Class: model.ClassHealthy,
			Lines: []string{
				"run this check monthly",
				"keep regular backups of important data",
				"watch temperatures under sustained load",
				"keep at least 10-20% free space",
			},
		})
	}
	return out
}

func fsDescription(p model.Partition) string {
	desc := orDash(p.FS())
	if p.Label != nil {
		desc += ", label " + *p.Label
	}
	return desc
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

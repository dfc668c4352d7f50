package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/model"
)

// Options tune the human-readable renderers.
type Options struct {
	MaxMountPoints int
	ShowUnmounted  bool
	ShowIOStats    bool

	// CheckOnly drops the maintenance advice.
	CheckOnly bool

	// Quiet drops the privilege banner and tool hints.
	Quiet bool

	ShowScanTime bool

	// MissingTools are optional tools that could not be resolved.
	MissingTools []string
}

// OptionsFrom maps the output config group onto Options.
func OptionsFrom(cfg config.Output) Options {
	return Options{
		MaxMountPoints: cfg.MaxMountPointsShown,
		ShowUnmounted:  cfg.ShowUnmounted,
		ShowIOStats:    cfg.ShowIOStats,
	}
}

// Console writes the styled report. Colors degrade to plain text when w is
// not a terminal.
func Console(w io.Writer, rep *model.Report, opts Options) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("  Disk Health Check %s  ·  %s  ·  %s",
		rep.Version, orDash(rep.Hostname), rep.Timestamp.Format("2006-01-02 15:04:05"))))
	b.WriteString("\n\n")

	if !rep.IsRoot && !opts.Quiet {
		b.WriteString(warnStyle.Render("⚠ Running without root privileges."))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  SMART, temperature and unmounted filesystem checks need root."))
		b.WriteString("\n\n")
	}

	if len(rep.Drives) == 0 {
		b.WriteString(dimStyle.Render("No drives found."))
		b.WriteString("\n")
	}
	for i, d := range rep.Drives {
		writeDrive(&b, i+1, d, opts)
	}

	for _, s := range Recommendations(rep, opts) {
		style := classStyle(s.Class)
		b.WriteString(style.Render(s.Title + ":"))
		b.WriteString("\n")
		for _, l := range s.Lines {
			if strings.HasPrefix(l, "  repair with: ") {
				b.WriteString("    " + cmdStyle.Render(strings.TrimPrefix(l, "  repair with: ")) + "\n")
				continue
			}
			b.WriteString("  • " + l + "\n")
		}
		b.WriteString("\n")
	}

	writeSummary(&b, rep.Summary)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeDrive(b *strings.Builder, rank int, d model.DriveResult, opts Options) {
	style := classStyle(d.Class)
	b.WriteString(style.Render(fmt.Sprintf("#%d  %s  %s (%s)", rank, d.Path, d.Model, humanize.IBytes(uint64(d.SizeBytes)))))
	b.WriteString("\n")

	if d.State == model.StateFailed {
		b.WriteString(kv("Status", critStyle.Render("✗ assessment failed: "+d.Error)))
		b.WriteString("\n")
		return
	}
	b.WriteString(kv("Status", style.Render(fmt.Sprintf("%s %s, score %d", classSymbol(d.Class), d.Class, deref(d.Score)))))

	if s := d.Smart; s != nil {
		verdict := string(s.Verdict)
		if s.Note != "" {
			verdict += dimStyle.Render(" (" + s.Note + ")")
		}
		b.WriteString(kv("SMART", verdict))
		if s.TemperatureC != nil {
			b.WriteString(kv("Temperature", tempStyle(d).Render(fmt.Sprintf("%d°C", *s.TemperatureC))))
		}
		if s.ReallocatedSectors != nil && *s.ReallocatedSectors > 0 {
			b.WriteString(kv("Reallocated", warnStyle.Render(humanize.Comma(*s.ReallocatedSectors))))
		}
	}

	if u := d.Usage; u != nil {
		b.WriteString(kv("Usage", usageStyle(d).Render(fmt.Sprintf("%d%%", u.Percent))))
		for i, m := range u.Mounts {
			if opts.MaxMountPoints > 0 && i >= opts.MaxMountPoints {
				b.WriteString(dimStyle.Render(fmt.Sprintf("      └─ … %d more", len(u.Mounts)-i)))
				b.WriteString("\n")
				break
			}
			b.WriteString(fmt.Sprintf("      └─ %s: %d%% (%s / %s)\n",
				m.MountPoint, m.Percent, humanize.IBytes(m.UsedBytes), humanize.IBytes(m.TotalBytes)))
		}
	}

	if opts.ShowUnmounted {
		writeUnmounted(b, d.Partitions)
	}

	if opts.ShowIOStats && d.IOStats != nil {
		b.WriteString(kv("I/O", fmt.Sprintf("%s reads, %s writes",
			humanize.Comma(int64(d.IOStats.ReadIOs)), humanize.Comma(int64(d.IOStats.WriteIOs)))))
	}
	if opts.ShowScanTime {
		b.WriteString(kv("Scan time", fmt.Sprintf("%.2fs", d.ScanSeconds)))
	}

	if len(d.Issues) > 0 {
		b.WriteString(labelStyle.Render("   Issues:"))
		b.WriteString("\n")
		for _, is := range d.Issues {
			b.WriteString("      " + severityStyle(is.Severity).Render("• "+is.Message) + "\n")
		}
	}
	for _, n := range d.Notes {
		b.WriteString(dimStyle.Render("   note: "+n) + "\n")
	}
	b.WriteString("\n")
}

func writeUnmounted(b *strings.Builder, parts []model.Partition) {
	header := false
	for _, p := range parts {
		if p.Mounted() {
			continue
		}
		if !header {
			b.WriteString(labelStyle.Render("   Unmounted partitions:"))
			b.WriteString("\n")
			header = true
		}
		label := ""
		if p.Label != nil {
			label = " [" + *p.Label + "]"
		}
		fs := p.FS()
		if fs == "" {
			fs = "unknown fs"
		}
		b.WriteString(fmt.Sprintf("      └─ %s: %s%s (%s)\n", p.Name, fs, label, humanize.IBytes(uint64(p.SizeBytes))))

		c := p.Check
		switch {
		case c == nil:
		case c.Clean != nil && !*c.Clean:
			b.WriteString("         " + warnStyle.Render("state: "+orDash(c.State)+", needs checking") + "\n")
		case c.NeedsCheck:
			b.WriteString("         " + warnStyle.Render(fmt.Sprintf("check recommended (mount count %s/%s)",
				intOrDash(c.MountCount), intOrDash(c.MaxMountCount))) + "\n")
		case c.Clean != nil:
			b.WriteString("         " + okStyle.Render("state: "+orDash(c.State)) + "\n")
		default:
			b.WriteString("         " + dimStyle.Render("state: "+orDash(c.State)) + "\n")
		}
		if c != nil && c.LastChecked != nil {
			b.WriteString("         last checked: " + humanize.Time(*c.LastChecked) + "\n")
		}
		if c.Unhealthy() && p.RepairCommand != "" {
			b.WriteString("         " + cmdStyle.Render("→ "+p.RepairCommand) + "\n")
		}
	}
}

func writeSummary(b *strings.Builder, s model.Summary) {
	b.WriteString(titleStyle.Render("Summary"))
	b.WriteString("\n")
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		critStyle.Render(fmt.Sprintf("%d critical", s.Critical)), "  ",
		warnStyle.Render(fmt.Sprintf("%d warning", s.Warning)), "  ",
		infoStyle.Render(fmt.Sprintf("%d info", s.Info)), "  ",
		okStyle.Render(fmt.Sprintf("%d healthy", s.Healthy)),
	)
	b.WriteString("  " + row + "\n")
	if s.Failed > 0 {
		b.WriteString("  " + critStyle.Render(fmt.Sprintf("%d failed", s.Failed)) + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d partitions, %d unmounted, scanned in %.1fs",
		s.Partitions, s.Unmounted, s.ScanSeconds)))
	b.WriteString("\n")
}

func kv(key, val string) string {
	return "   " + labelStyle.Render(fmt.Sprintf("%-12s", key+":")) + " " + val + "\n"
}

// tempStyle colors by the issue the scorer raised, so the display agrees
// with the configured thresholds.
func tempStyle(d model.DriveResult) lipgloss.Style {
	return issueStyle(d, "temp_")
}

func usageStyle(d model.DriveResult) lipgloss.Style {
	return issueStyle(d, "usage_")
}

func issueStyle(d model.DriveResult, prefix string) lipgloss.Style {
	for _, is := range d.Issues {
		if strings.HasPrefix(is.Rule, prefix) {
			return severityStyle(is.Severity)
		}
	}
	return okStyle
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

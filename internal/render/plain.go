package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/obsidianstack/diskhealth/internal/model"
)

// Plain writes the report as unstyled text suitable for mail and logs.
func Plain(w io.Writer, rep *model.Report, opts Options) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Disk Health Check Report - %s\n", rep.Timestamp.Format("2006-01-02 15:04:05"))
	if rep.Hostname != "" {
		fmt.Fprintf(&b, "Host: %s\n", rep.Hostname)
	}
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for i, d := range rep.Drives {
		fmt.Fprintf(&b, "\n#%d %s - %s (%s)\n", i+1, d.Path, d.Model, humanize.IBytes(uint64(d.SizeBytes)))
		if d.State == model.StateFailed {
			fmt.Fprintf(&b, "   Status: FAILED (%s)\n", d.Error)
			continue
		}
		fmt.Fprintf(&b, "   Score: %d (%s)\n", deref(d.Score), d.Class)
		if s := d.Smart; s != nil {
			fmt.Fprintf(&b, "   SMART: %s\n", s.Verdict)
			if s.TemperatureC != nil {
				fmt.Fprintf(&b, "   Temperature: %d°C\n", *s.TemperatureC)
			}
		}
		if d.Usage != nil {
			fmt.Fprintf(&b, "   Usage: %d%%\n", d.Usage.Percent)
		}

		if len(d.Partitions) > 0 {
			b.WriteString("   Partitions:\n")
			for _, p := range d.Partitions {
				status := "unmounted"
				if p.Mounted() {
					status = "mounted"
				}
				fmt.Fprintf(&b, "      - %s (%s) - %s\n", p.Name, orDash(p.FS()), status)
				switch {
				case p.Mounted() && p.Usage != nil:
					fmt.Fprintf(&b, "        Usage: %d%% at %s\n", p.Usage.Percent, p.Usage.MountPoint)
				case !p.Mounted() && p.Check != nil && p.Check.State != "":
					fmt.Fprintf(&b, "        State: %s\n", p.Check.State)
				}
				if !p.Mounted() && p.Check.Unhealthy() && p.RepairCommand != "" {
					fmt.Fprintf(&b, "        Repair: %s\n", p.RepairCommand)
				}
			}
		}

		if len(d.Issues) > 0 {
			b.WriteString("   Issues:\n")
			for _, is := range d.Issues {
				fmt.Fprintf(&b, "      [%s] %s\n", is.Severity, is.Message)
			}
		}
		if opts.ShowScanTime {
			fmt.Fprintf(&b, "   Scan time: %.2fs\n", d.ScanSeconds)
		}
	}

	s := rep.Summary
	fmt.Fprintf(&b, "\nSummary: %d critical, %d warning, %d info, %d healthy, %d failed\n",
		s.Critical, s.Warning, s.Info, s.Healthy, s.Failed)

	_, err := io.WriteString(w, b.String())
	return err
}

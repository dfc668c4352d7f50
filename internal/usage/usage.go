package usage

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/obsidianstack/diskhealth/internal/model"
)

// Stat is one statfs result.
type Stat struct {
	Used  uint64
	Total uint64
}

// StatFunc reads capacity for a mount point.
type StatFunc func(ctx context.Context, mountPoint string) (Stat, error)

// SystemStat reads capacity with gopsutil.
func SystemStat(ctx context.Context, mountPoint string) (Stat, error) {
	u, err := disk.UsageWithContext(ctx, mountPoint)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Used: u.Used, Total: u.Total}, nil
}

// Collector gathers filesystem usage for mounted partitions. It starts no
// external process.
type Collector struct {
	stat StatFunc
}

// NewCollector returns a Collector using stat, or SystemStat when nil.
func NewCollector(stat StatFunc) *Collector {
	if stat == nil {
		stat = SystemStat
	}
	return &Collector{stat: stat}
}

// Collect returns usage across the mounted partitions, or nil when none of
// them produced data. Percent is the worst single mount; byte totals are
// summed. Pseudo mount points such as "[SWAP]" are skipped, and a mount
// point reached from several partitions is counted once.
func (c *Collector) Collect(ctx context.Context, partitions []model.Partition) *model.UsageReport {
	var rep model.UsageReport
	seen := make(map[string]bool)

	for _, p := range partitions {
		if !p.Mounted() {
			continue
		}
		mp := *p.MountPoint
		if !strings.HasPrefix(mp, "/") || seen[mp] {
			continue
		}
		seen[mp] = true

		st, err := c.stat(ctx, mp)
		if err != nil {
			slog.Warn("usage: stat failed, omitting mount", "mountpoint", mp, "device", p.Path, "err", err)
			continue
		}
		if st.Total == 0 {
			continue
		}

		mu := model.MountUsage{
			MountPoint: mp,
			Device:     p.Path,
			UsedBytes:  st.Used,
			TotalBytes: st.Total,
			Percent:    Percent(st.Used, st.Total),
		}
		rep.Mounts = append(rep.Mounts, mu)
		rep.UsedBytes += st.Used
		rep.TotalBytes += st.Total
		if mu.Percent > rep.Percent {
			rep.Percent = mu.Percent
		}
	}

	if len(rep.Mounts) == 0 {
		return nil
	}
	return &rep
}

// Percent returns round(used/total*100) clamped to [0, 100].
func Percent(used, total uint64) int {
	if total == 0 {
		return 0
	}
	p := int(math.Round(float64(used) / float64(total) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

package usage

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/obsidianstack/diskhealth/internal/model"
)

// IOCountersFunc reads cumulative block-layer counters for one device name.
type IOCountersFunc func(ctx context.Context, name string) (*model.IOStats, error)

// SystemIOCounters reads /proc/diskstats through gopsutil. It returns nil
// without error when the kernel has no entry for name.
func SystemIOCounters(ctx context.Context, name string) (*model.IOStats, error) {
	counters, err := disk.IOCountersWithContext(ctx, name)
	if err != nil {
		return nil, err
	}
	c, ok := counters[name]
	if !ok {
		return nil, nil
	}
	return &model.IOStats{
		ReadIOs:    c.ReadCount,
		WriteIOs:   c.WriteCount,
		ReadBytes:  c.ReadBytes,
		WriteBytes: c.WriteBytes,
		IOTimeMs:   c.IoTime,
	}, nil
}

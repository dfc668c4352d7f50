package blockdev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// ErrEnumeration is the only fatal error of a run: without a drive list there
// is nothing to assess.
var ErrEnumeration = errors.New("blockdev: enumeration failed")

// MountTable maps a device path to its active mount point.
type MountTable func(ctx context.Context) (map[string]string, error)

// Enumerator lists physical drives and their partitions.
type Enumerator struct {
	runner  probe.Runner
	mounts  MountTable
	devices map[string]bool
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithMountTable replaces the gopsutil mount table, mainly for tests.
func WithMountTable(mt MountTable) Option {
	return func(e *Enumerator) { e.mounts = mt }
}

// WithDevices restricts enumeration to the named drives. Names may be given
// as "sda" or "/dev/sda". An empty list keeps every drive.
func WithDevices(names ...string) Option {
	return func(e *Enumerator) {
		if len(names) == 0 {
			return
		}
		e.devices = make(map[string]bool, len(names))
		for _, n := range names {
			e.devices[strings.TrimPrefix(n, "/dev/")] = true
		}
	}
}

// New returns an Enumerator that runs lsblk through runner.
func New(runner probe.Runner, opts ...Option) *Enumerator {
	e := &Enumerator{runner: runner, mounts: SystemMounts}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enumerate runs lsblk once and returns the drives in lsblk order.
//
// Mount state is taken from the kernel mount table when it can be read, and
// from lsblk's MOUNTPOINT column otherwise. Any lsblk failure is reported as
// ErrEnumeration.
func (e *Enumerator) Enumerate(ctx context.Context) ([]model.Drive, error) {
	res, err := e.runner.Run(ctx, "lsblk", lsblkArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: lsblk: %w", ErrEnumeration, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: lsblk exited %d: %s",
			ErrEnumeration, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	drives, err := Parse([]byte(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	if e.devices != nil {
		kept := drives[:0]
		for _, d := range drives {
			if e.devices[d.Name] {
				kept = append(kept, d)
			}
		}
		drives = kept
	}

	table, err := e.mounts(ctx)
	if err != nil {
		slog.Warn("blockdev: mount table unavailable, using lsblk mount points", "err", err)
	} else {
		applyMounts(drives, table)
	}

	slog.Info("blockdev: enumerated drives", "count", len(drives))
	return drives, nil
}

// applyMounts overlays the kernel mount table onto lsblk's view.
func applyMounts(drives []model.Drive, table map[string]string) {
	for i := range drives {
		for j := range drives[i].Partitions {
			p := &drives[i].Partitions[j]
			if mp, ok := table[p.Path]; ok {
				p.MountPoint = model.Ptr(mp)
			}
		}
	}
}

// SystemMounts reads the mount table with gopsutil. Device symlinks such as
// /dev/disk/by-uuid/... are resolved so keys match lsblk's paths.
func SystemMounts(ctx context.Context) (map[string]string, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	table := make(map[string]string, len(parts))
	for _, p := range parts {
		if !strings.HasPrefix(p.Device, "/dev/") {
			continue
		}
		dev := p.Device
		if resolved, err := filepath.EvalSymlinks(dev); err == nil {
			dev = resolved
		}
		if _, seen := table[dev]; !seen {
			table[dev] = p.Mountpoint
		}
	}
	return table, nil
}

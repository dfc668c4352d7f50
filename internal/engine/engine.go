package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/diskhealth/internal/blockdev"
	"github.com/obsidianstack/diskhealth/internal/compute"
	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/fscheck"
	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
	"github.com/obsidianstack/diskhealth/internal/smart"
	"github.com/obsidianstack/diskhealth/internal/usage"
)

// errCancelled is recorded on drives that had not been scored when the run
// context ended.
const errCancelled = "cancelled"

// Options select which probes run and inject system hooks.
type Options struct {
	// SmartOnly runs only the SMART probe and scores only its rules.
	SmartOnly bool

	// UsageOnly runs only usage collection and scores only its rules.
	UsageOnly bool

	// IOStats adds /proc/diskstats counters to each drive.
	IOStats bool

	// IsRoot is whether the process runs with root privileges.
	IsRoot bool

	// Devices restricts the run to the named drives.
	Devices []string

	// Hooks default to the gopsutil implementations when nil.
	MountTable blockdev.MountTable
	Stat       usage.StatFunc
	IOCounters usage.IOCountersFunc
}

// Engine runs one assessment across every enumerated drive.
//
// An Engine holds no per-run state; Run may be called repeatedly and
// concurrently.
type Engine struct {
	enum      *blockdev.Enumerator
	smart     *smart.Assessor
	usage     *usage.Collector
	inspector *fscheck.Inspector
	scorer    *compute.Scorer
	io        usage.IOCountersFunc
	workers   int
	opts      Options
}

// New wires the probing components around runner. Every external command
// they start shares one budget of cfg.Performance.MaxWorkers slots, the same
// number that bounds how many drives are assessed at once.
func New(cfg *config.Config, runner probe.Runner, opts Options) *Engine {
	workers := cfg.Performance.MaxWorkers
	if workers <= 0 {
		workers = config.DefaultMaxWorkers
	}
	limited := probe.Limit(runner, workers)

	enumOpts := []blockdev.Option{blockdev.WithDevices(opts.Devices...)}
	if opts.MountTable != nil {
		enumOpts = append(enumOpts, blockdev.WithMountTable(opts.MountTable))
	}
	io := opts.IOCounters
	if io == nil {
		io = usage.SystemIOCounters
	}

	return &Engine{
		enum:      blockdev.New(limited, enumOpts...),
		smart:     smart.NewAssessor(limited, opts.IsRoot),
		usage:     usage.NewCollector(opts.Stat),
		inspector: fscheck.New(limited, cfg.Filesystem),
		scorer:    compute.NewScorer(cfg.Thresholds),
		io:        io,
		workers:   workers,
		opts:      opts,
	}
}

// Run enumerates drives and assesses each one. Results are in enumeration
// order; ordering for display is the report's job.
//
// The only error is enumeration failure. Every other problem degrades the
// affected drive and the run continues. When ctx ends mid-run, drives not
// yet scored come back failed with a nil score.
func (e *Engine) Run(ctx context.Context) ([]model.DriveResult, error) {
	drives, err := e.enum.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("engine: drives enumerated", "count", len(drives), "workers", e.workers)

	results := make([]model.DriveResult, len(drives))
	for i, d := range drives {
		results[i] = model.DriveResult{Drive: d, State: model.StatePending, Issues: []model.Issue{}}
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			e.assess(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	for i := range results {
		if results[i].State != model.StateScored && results[i].State != model.StateFailed {
			fail(&results[i], errCancelled)
		}
	}
	return results, nil
}

// assess drives one result through probing to scored or failed. It is the
// only writer of r.
func (e *Engine) assess(ctx context.Context, r *model.DriveResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("engine: drive assessment panicked", "device", r.Path, "panic", p)
			fail(r, fmt.Sprintf("panic: %v", p))
		}
		r.ScanSeconds = time.Since(start).Seconds()
	}()

	if ctx.Err() != nil {
		fail(r, errCancelled)
		return
	}
	r.State = model.StateProbing

	// Partitions are copied so the enumerated drive is never written. While
	// probes run, parts is read-only; inspectors write into inspected and
	// every other probe into its own local, merged after all have settled.
	parts := append([]model.Partition(nil), r.Partitions...)
	inspected := make([]*model.Partition, len(parts))
	drive := r.Drive

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notes    []string
		panics   []string
		smartRep *model.SmartReport
		usageRep *model.UsageReport
		ioStats  *model.IOStats
	)
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					mu.Lock()
					panics = append(panics, fmt.Sprint(p))
					mu.Unlock()
				}
			}()
			fn()
		}()
	}
	addNotes := func(n ...string) {
		mu.Lock()
		notes = append(notes, n...)
		mu.Unlock()
	}

	if !e.opts.UsageOnly {
		spawn(func() {
			rep := e.smart.Assess(ctx, drive)
			smartRep = &rep
		})
	}
	if !e.opts.SmartOnly {
		spawn(func() {
			usageRep = e.usage.Collect(ctx, parts)
		})
	}
	if !e.opts.SmartOnly && !e.opts.UsageOnly {
		for idx := range parts {
			if parts[idx].Mounted() {
				continue
			}
			spawn(func() {
				p, n := e.inspector.Inspect(ctx, parts[idx])
				inspected[idx] = &p
				if len(n) > 0 {
					addNotes(n...)
				}
			})
		}
	}
	if e.opts.IOStats {
		spawn(func() {
			st, err := e.io(ctx, drive.Name)
			if err != nil {
				slog.Debug("engine: io counters unavailable", "device", drive.Path, "err", err)
				addNotes("io stats unavailable: " + err.Error())
				return
			}
			ioStats = st
		})
	}
	wg.Wait()

	for idx, p := range inspected {
		if p != nil {
			parts[idx] = *p
		}
	}
	r.Partitions = parts
	r.Smart = smartRep
	r.Usage = usageRep
	r.IOStats = ioStats
	r.Notes = notes
	if len(panics) > 0 {
		slog.Error("engine: probe panicked", "device", r.Path, "panic", panics[0])
		fail(r, "panic: "+panics[0])
		return
	}
	if ctx.Err() != nil {
		fail(r, errCancelled)
		return
	}

	attachMountUsage(parts, r.Usage)

	in := compute.Input{Smart: r.Smart, Usage: r.Usage}
	if !e.opts.SmartOnly && !e.opts.UsageOnly {
		in.Partitions = parts
	}
	out := e.scorer.Score(in)
	r.Score = model.Ptr(out.Score)
	r.Class = out.Class
	r.Issues = out.Issues
	r.State = model.StateScored

	slog.Info("engine: drive scored",
		"device", r.Path,
		"score", out.Score,
		"class", out.Class,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// attachMountUsage copies each mount's usage onto the partition it came from.
func attachMountUsage(parts []model.Partition, rep *model.UsageReport) {
	if rep == nil {
		return
	}
	byDevice := make(map[string]model.MountUsage, len(rep.Mounts))
	for _, m := range rep.Mounts {
		byDevice[m.Device] = m
	}
	for i := range parts {
		if m, ok := byDevice[parts[i].Path]; ok {
			parts[i].Usage = &m
		}
	}
}

func fail(r *model.DriveResult, msg string) {
	r.State = model.StateFailed
	r.Score = nil
	r.Class = ""
	r.Error = msg
	if r.Issues == nil {
		r.Issues = []model.Issue{}
	}
}

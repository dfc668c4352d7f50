package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/engine"
	"github.com/obsidianstack/diskhealth/internal/export"
	"github.com/obsidianstack/diskhealth/internal/fscheck"
	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/notify"
	"github.com/obsidianstack/diskhealth/internal/probe"
	"github.com/obsidianstack/diskhealth/internal/render"
	"github.com/obsidianstack/diskhealth/internal/report"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// optionalTools are reported as missing in the recommendations.
var optionalTools = []string{"smartctl", "blkid"}

// toolsToCheck lists the optional tools a run with cfg may invoke.
func toolsToCheck(cfg *config.Config) []string {
	return append(append([]string(nil), optionalTools...), fscheck.Tools(cfg.Filesystem)...)
}

// cliFlags holds the parsed command line. set records which flags were
// given explicitly so only those override the config file.
type cliFlags struct {
	configPath   string
	createConfig string
	json         bool
	plain        bool
	quiet        bool
	verbose      bool
	debug        bool
	logFormat    string
	parallel     int
	timeout      string
	checkUnmount bool
	showUnmount  bool
	smartOnly    bool
	usageOnly    bool
	checkOnly    bool
	devices      []string
	textfile     string
	interval     time.Duration
	version      bool

	set map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return report.ExitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "diskhealth:", err)
		return report.ExitEngineError
	}

	if f.version {
		fmt.Fprintf(stdout, "diskhealth %s\n", version)
		return report.ExitOK
	}

	slog.SetDefault(newLogger(stderr, f))

	if f.createConfig != "" {
		if err := config.WriteSample(f.createConfig); err != nil {
			slog.Error("failed to write sample config", "err", err)
			return report.ExitEngineError
		}
		fmt.Fprintf(stdout, "sample configuration written to %s\n", f.createConfig)
		return report.ExitOK
	}

	cfg, err := loadConfig(f)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return report.ExitEngineError
	}
	slog.Info("config loaded",
		"path", f.configPath,
		"max_workers", cfg.Performance.MaxWorkers,
		"command_timeout", cfg.Performance.CommandTimeout.Std(),
		"check_unmounted", cfg.Filesystem.CheckUnmounted,
	)

	resolver := probe.NewResolver(cfg.Tools.SearchPaths)
	if !resolver.Available("lsblk") {
		slog.Error("required tool not found", "tool", "lsblk", "search_paths", cfg.Tools.SearchPaths)
		return report.ExitEngineError
	}
	var missing []string
	for _, tool := range toolsToCheck(cfg) {
		if !resolver.Available(tool) {
			slog.Warn("optional tool not found", "tool", tool)
			missing = append(missing, tool)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := &runner{
		flags:    f,
		stdout:   stdout,
		missing:  missing,
		isRoot:   report.IsRoot(),
		notifier: notify.New(cfg.Notify, nil),
	}
	if !r.isRoot {
		slog.Warn("running without root privileges, SMART and filesystem checks will be limited")
	}

	if f.interval <= 0 {
		return r.once(ctx, cfg, resolver)
	}
	return r.loop(ctx, cfg)
}

// runner executes assessment passes with a fixed command line.
type runner struct {
	flags    *cliFlags
	stdout   io.Writer
	missing  []string
	isRoot   bool
	notifier *notify.Notifier
}

// once runs a single pass and returns its exit status.
func (r *runner) once(ctx context.Context, cfg *config.Config, resolver *probe.Resolver) int {
	start := time.Now()
	exec := probe.NewExec(resolver, cfg.Performance.CommandTimeout.Std())
	eng := engine.New(cfg, exec, engine.Options{
		SmartOnly: r.flags.smartOnly,
		UsageOnly: r.flags.usageOnly,
		IOStats:   cfg.Output.ShowIOStats,
		IsRoot:    r.isRoot,
		Devices:   r.flags.devices,
	})

	results, err := eng.Run(ctx)
	if err != nil {
		slog.Error("assessment failed", "err", err)
		if ctx.Err() != nil {
			return report.ExitInterrupted
		}
		return report.ExitEngineError
	}

	rep := report.Assemble(report.Meta{
		Version:   version,
		Hostname:  report.Hostname(ctx),
		IsRoot:    r.isRoot,
		Timestamp: start,
		Elapsed:   time.Since(start),
	}, results)

	if err := r.write(rep, cfg); err != nil {
		slog.Error("failed to write report", "err", err)
		return report.ExitEngineError
	}

	if path := cfg.Export.Textfile; path != "" {
		if err := export.WriteTextfile(path, rep); err != nil {
			slog.Error("textfile export failed", "path", path, "err", err)
		}
	}
	r.notifier.Notify(ctx, rep)

	slog.Info("assessment complete",
		"drives", len(rep.Drives),
		"critical", rep.Summary.Critical,
		"warning", rep.Summary.Warning,
		"failed", rep.Summary.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if ctx.Err() != nil {
		return report.ExitInterrupted
	}
	return report.ExitCode(rep)
}

// loop repeats passes every interval until interrupted, reloading the config
// file when it changes.
func (r *runner) loop(ctx context.Context, initial *config.Config) int {
	var current atomic.Pointer[config.Config]
	current.Store(initial)

	if r.flags.configPath != "" {
		go func() {
			if err := config.Watch(ctx, r.flags.configPath, func(updated *config.Config) {
				err := applyFlags(updated, r.flags)
				if err == nil {
					err = config.Validate(updated)
				}
				if err != nil {
					slog.Warn("config reload rejected", "err", err)
					return
				}
				current.Store(updated)
				r.notifier.Reconfigure(updated.Notify)
				slog.Info("config hot-reloaded", "max_workers", updated.Performance.MaxWorkers)
			}); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	ticker := time.NewTicker(r.flags.interval)
	defer ticker.Stop()
	for {
		cfg := current.Load()
		code := r.once(ctx, cfg, probe.NewResolver(cfg.Tools.SearchPaths))
		slog.Debug("pass finished", "exit", code, "next_in", r.flags.interval)

		select {
		case <-ctx.Done():
			slog.Info("diskhealth shutting down")
			return report.ExitInterrupted
		case <-ticker.C:
		}
	}
}

func (r *runner) write(rep *model.Report, cfg *config.Config) error {
	switch {
	case r.flags.json:
		return render.JSON(r.stdout, rep)
	case r.flags.plain:
		return render.Plain(r.stdout, rep, r.renderOptions(cfg))
	default:
		return render.Console(r.stdout, rep, r.renderOptions(cfg))
	}
}

func (r *runner) renderOptions(cfg *config.Config) render.Options {
	opts := render.OptionsFrom(cfg.Output)
	opts.CheckOnly = r.flags.checkOnly
	opts.Quiet = r.flags.quiet
	opts.ShowScanTime = r.flags.debug
	opts.MissingTools = r.missing
	return opts
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("diskhealth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "path to YAML config file (defaults when empty)")
	fs.StringVar(&f.createConfig, "create-config", "", "write a sample config to `path` and exit")
	fs.BoolVar(&f.json, "json", false, "write the report as JSON")
	fs.BoolVar(&f.plain, "plain", false, "write the report as plain text")
	fs.BoolVar(&f.quiet, "quiet", false, "omit privilege and tool hints")
	fs.BoolVar(&f.verbose, "verbose", false, "log at info level")
	fs.BoolVar(&f.debug, "debug", false, "log at debug level and show scan times")
	fs.StringVar(&f.logFormat, "log-format", "json", "log format: json | text")
	fs.IntVar(&f.parallel, "parallel", 0, "number of parallel workers")
	fs.StringVar(&f.timeout, "timeout", "", "per-command timeout in seconds or as a duration")
	fs.BoolVar(&f.checkUnmount, "check-unmounted", false, "run read-only checks on unmounted filesystems")
	fs.BoolVar(&f.showUnmount, "show-unmounted", false, "list unmounted partitions")
	fs.BoolVar(&f.smartOnly, "smart-only", false, "run only SMART checks")
	fs.BoolVar(&f.usageOnly, "usage-only", false, "run only usage checks")
	fs.BoolVar(&f.checkOnly, "check-only", false, "report only, without maintenance advice")
	fs.Func("device", "assess only this drive (repeatable)", func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return errors.New("empty device name")
		}
		f.devices = append(f.devices, s)
		return nil
	})
	fs.StringVar(&f.textfile, "textfile", "", "write Prometheus metrics to this .prom file")
	fs.DurationVar(&f.interval, "interval", 0, "repeat every interval until interrupted")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if f.smartOnly && f.usageOnly {
		return nil, errors.New("--smart-only and --usage-only are mutually exclusive")
	}
	if f.json && f.plain {
		return nil, errors.New("--json and --plain are mutually exclusive")
	}
	switch f.logFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("--log-format: unknown format %q", f.logFormat)
	}
	if f.interval < 0 {
		return nil, errors.New("--interval must not be negative")
	}
	return f, nil
}

func loadConfig(f *cliFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, f); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag given on the command line.
func applyFlags(cfg *config.Config, f *cliFlags) error {
	if f.set["parallel"] {
		cfg.Performance.MaxWorkers = f.parallel
	}
	if f.set["timeout"] {
		if err := cfg.Performance.CommandTimeout.Decode(f.timeout); err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
	}
	if f.set["check-unmounted"] {
		cfg.Filesystem.CheckUnmounted = f.checkUnmount
	}
	if f.set["show-unmounted"] {
		cfg.Output.ShowUnmounted = f.showUnmount
	}
	if f.set["textfile"] {
		cfg.Export.Textfile = f.textfile
	}
	return nil
}

func newLogger(w io.Writer, f *cliFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case f.debug:
		level = slog.LevelDebug
	case f.verbose:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if f.logFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/report"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{
		"--parallel", "8",
		"--timeout", "30",
		"--check-unmounted=false",
		"--device", "sda",
		"--device=/dev/nvme0n1",
		"--interval", "15m",
		"--json",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if f.parallel != 8 || f.timeout != "30" || !f.json || f.interval != 15*time.Minute {
		t.Errorf("flags = %+v", f)
	}
	if len(f.devices) != 2 || f.devices[1] != "/dev/nvme0n1" {
		t.Errorf("devices = %v", f.devices)
	}
	for _, name := range []string{"parallel", "timeout", "check-unmounted", "device", "interval", "json"} {
		if !f.set[name] {
			t.Errorf("flag %q not recorded as set", name)
		}
	}
	if f.set["show-unmounted"] {
		t.Error("unset flag recorded as set")
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := [][]string{
		{"--smart-only", "--usage-only"},
		{"--json", "--plain"},
		{"--log-format", "xml"},
		{"--interval", "-1s"},
		{"--device", " "},
		{"--parallel", "many"},
		{"extra-arg"},
	}
	for _, args := range tests {
		if _, err := parseFlags(args, io.Discard); err == nil {
			t.Errorf("parseFlags(%v) succeeded, want error", args)
		}
	}
}

func TestApplyFlags_OnlyExplicitFlagsOverride(t *testing.T) {
	f, err := parseFlags([]string{"--timeout", "1m30s", "--textfile", "/tmp/dh.prom"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Defaults()
	cfg.Performance.MaxWorkers = 6
	if err := applyFlags(cfg, f); err != nil {
		t.Fatalf("applyFlags() error = %v", err)
	}
	if cfg.Performance.MaxWorkers != 6 {
		t.Errorf("max_workers = %d, want the config value kept", cfg.Performance.MaxWorkers)
	}
	if cfg.Performance.CommandTimeout.Std() != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Performance.CommandTimeout.Std())
	}
	if !cfg.Filesystem.CheckUnmounted || cfg.Export.Textfile != "/tmp/dh.prom" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_FlagMakesConfigInvalid(t *testing.T) {
	f, err := parseFlags([]string{"--parallel", "0"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(f); err == nil {
		t.Error("want validation error for --parallel 0")
	}
}

func TestToolsToCheck(t *testing.T) {
	cfg := config.Defaults()
	got := strings.Join(toolsToCheck(cfg), ",")
	for _, tool := range []string{"smartctl", "blkid", "dumpe2fs", "xfs_repair", "btrfs", "ntfsfix", "fsck.vfat", "fsck.exfat"} {
		if !strings.Contains(got, tool) {
			t.Errorf("toolsToCheck() = %s, missing %s", got, tool)
		}
	}

	cfg.Filesystem.CheckUnmounted = false
	if got := toolsToCheck(cfg); strings.Join(got, ",") != "smartctl,blkid" {
		t.Errorf("toolsToCheck() with checks off = %v, want smartctl,blkid", got)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if code := run([]string{"--version"}, &out, io.Discard); code != report.ExitOK {
		t.Errorf("exit = %d", code)
	}
	if !strings.HasPrefix(out.String(), "diskhealth ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_CreateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diskhealth.yaml")
	if code := run([]string{"--create-config", path}, io.Discard, io.Discard); code != report.ExitOK {
		t.Fatalf("exit = %d", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample does not load: %v", err)
	}
	if cfg.Performance.MaxWorkers != config.DefaultMaxWorkers {
		t.Errorf("max_workers = %d", cfg.Performance.MaxWorkers)
	}
}

func TestRun_BadInvocation(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"--smart-only", "--usage-only"}, io.Discard, &stderr); code != report.ExitEngineError {
		t.Errorf("exit = %d, want %d", code, report.ExitEngineError)
	}
	if code := run([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard, io.Discard); code != report.ExitEngineError {
		t.Errorf("missing config exit = %d, want %d", code, report.ExitEngineError)
	}
}

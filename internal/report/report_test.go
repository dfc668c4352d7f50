package report

import (
	"testing"
	"time"

	"github.com/obsidianstack/diskhealth/internal/model"
)

func scored(name string, score int, class model.Class, parts ...model.Partition) model.DriveResult {
	return model.DriveResult{
		Drive:  model.Drive{Name: name, Path: "/dev/" + name, Partitions: parts},
		State:  model.StateScored,
		Score:  model.Ptr(score),
		Class:  class,
		Issues: []model.Issue{},
	}
}

func failed(name string) model.DriveResult {
	return model.DriveResult{
		Drive: model.Drive{Name: name, Path: "/dev/" + name},
		State: model.StateFailed,
		Error: "cancelled",
	}
}

func names(drives []model.DriveResult) []string {
	out := make([]string, len(drives))
	for i, d := range drives {
		out[i] = d.Name
	}
	return out
}

func TestAssemble_Order(t *testing.T) {
	results := []model.DriveResult{
		failed("sdz"),
		scored("sdc", 30, model.ClassInfo),
		scored("sdb", 190, model.ClassWarning),
		failed("sda"),
		scored("nvme0n1", 30, model.ClassInfo),
		scored("sdd", 1500, model.ClassCritical),
	}
	rep := Assemble(Meta{Version: "1.0.0"}, results)

	want := []string{"sdd", "sdb", "nvme0n1", "sdc", "sda", "sdz"}
	got := names(rep.Drives)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if results[0].Name != "sdz" {
		t.Error("input slice was reordered")
	}
}

func TestAssemble_Summary(t *testing.T) {
	mounted := model.Partition{Name: "sda1", MountPoint: model.Ptr("/")}
	unmounted := model.Partition{Name: "sda2"}
	results := []model.DriveResult{
		scored("sda", 190, model.ClassWarning, mounted, unmounted),
		scored("sdb", 0, model.ClassHealthy, model.Partition{Name: "sdb1"}),
		scored("sdc", 1000, model.ClassCritical),
		scored("sdd", 5, model.ClassInfo),
		failed("sde"),
	}
	ts := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	rep := Assemble(Meta{Version: "1.0.0", Hostname: "nas01", IsRoot: true, Timestamp: ts, Elapsed: 2500 * time.Millisecond}, results)

	want := model.Summary{
		Critical: 1, Warning: 1, Info: 1, Healthy: 1, Failed: 1,
		Partitions: 3, Unmounted: 2, ScanSeconds: 2.5,
	}
	if rep.Summary != want {
		t.Errorf("Summary = %+v, want %+v", rep.Summary, want)
	}
	if rep.Hostname != "nas01" || !rep.IsRoot || !rep.Timestamp.Equal(ts) || rep.Version != "1.0.0" {
		t.Errorf("meta not stamped: %+v", rep)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		results []model.DriveResult
		want    int
	}{
		{"healthy", []model.DriveResult{scored("sda", 0, model.ClassHealthy)}, ExitOK},
		{"warning only", []model.DriveResult{scored("sda", 499, model.ClassWarning)}, ExitOK},
		{"failed drive", []model.DriveResult{failed("sda")}, ExitOK},
		{"critical", []model.DriveResult{scored("sda", 30, model.ClassInfo), scored("sdb", 500, model.ClassCritical)}, ExitCritical},
		{"no drives", nil, ExitOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(Assemble(Meta{}, tc.results)); got != tc.want {
				t.Errorf("ExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
	if ExitCode(nil) != ExitOK {
		t.Error("nil report should exit OK")
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		c, min model.Class
		want   bool
	}{
		{model.ClassCritical, model.ClassWarning, true},
		{model.ClassWarning, model.ClassWarning, true},
		{model.ClassInfo, model.ClassWarning, false},
		{model.ClassWarning, model.ClassCritical, false},
		{"", model.ClassInfo, false},
	}
	for _, tc := range tests {
		if got := AtLeast(tc.c, tc.min); got != tc.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tc.c, tc.min, got, tc.want)
		}
	}
}

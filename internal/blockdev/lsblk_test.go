package blockdev

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
	"github.com/obsidianstack/diskhealth/internal/probe/probetest"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}
	return data
}

func TestParse_Modern(t *testing.T) {
	drives, err := Parse(readTestdata(t, "lsblk_modern.json"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// loop0 and sr0 are not disks.
	if len(drives) != 4 {
		t.Fatalf("drives = %d, want 4", len(drives))
	}

	sda := drives[0]
	if sda.Name != "sda" || sda.Path != "/dev/sda" {
		t.Errorf("sda identity = %q %q", sda.Name, sda.Path)
	}
	if sda.Model != "Samsung SSD 860 EVO 500GB" {
		t.Errorf("model not trimmed: %q", sda.Model)
	}
	if sda.SizeBytes != 500107862016 {
		t.Errorf("size = %d", sda.SizeBytes)
	}
	if sda.Rotational {
		t.Error("sda should not be rotational")
	}
	if len(sda.Partitions) != 2 {
		t.Fatalf("sda partitions = %d, want 2", len(sda.Partitions))
	}
	if mp := sda.Partitions[0].MountPoint; mp == nil || *mp != "/boot/efi" {
		t.Errorf("sda1 mountpoint = %v", mp)
	}
	// sda2 backs "/" through dm-crypt and must count as mounted.
	if mp := sda.Partitions[1].MountPoint; mp == nil || *mp != "/" {
		t.Errorf("sda2 mountpoint = %v, want / from holder", mp)
	}

	sdb := drives[1]
	if !sdb.Rotational {
		t.Error("sdb should be rotational")
	}
	sdb1 := sdb.Partitions[0]
	if sdb1.Mounted() {
		t.Error("sdb1 should be unmounted")
	}
	if sdb1.FS() != "ext4" || sdb1.Label == nil || *sdb1.Label != "backup" {
		t.Errorf("sdb1 identity = %q %v", sdb1.FS(), sdb1.Label)
	}

	sdc := drives[2]
	if len(sdc.Partitions) != 1 || !sdc.Partitions[0].WholeDisk {
		t.Fatalf("sdc should have one whole-disk partition, got %+v", sdc.Partitions)
	}
	if sdc.Partitions[0].FS() != "xfs" || sdc.Partitions[0].Path != "/dev/sdc" {
		t.Errorf("sdc whole-disk partition = %+v", sdc.Partitions[0])
	}

	nvme := drives[3]
	if len(nvme.Partitions) != 0 {
		t.Errorf("nvme0n1 partitions = %d, want 0", len(nvme.Partitions))
	}
	if nvme.Partitions == nil {
		t.Error("partitions should be an empty slice, not nil")
	}
}

func TestParse_Legacy(t *testing.T) {
	drives, err := Parse(readTestdata(t, "lsblk_legacy.json"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(drives) != 1 {
		t.Fatalf("drives = %d, want 1", len(drives))
	}
	sda := drives[0]
	if sda.Path != "/dev/sda" {
		t.Errorf("path without PATH column = %q", sda.Path)
	}
	if !sda.Rotational {
		t.Error(`rota "1" should decode as rotational`)
	}
	if sda.SizeBytes != 1000204886016 {
		t.Errorf("string size = %d", sda.SizeBytes)
	}

	parts := sda.Partitions
	if len(parts) != 3 {
		t.Fatalf("partitions = %d, want 3", len(parts))
	}
	if parts[0].Label != nil {
		t.Errorf("empty label should be nil, got %q", *parts[0].Label)
	}
	if got, want := parts[1].SizeBytes, int64(1000190509056); got != want {
		t.Errorf("human size 931.5G = %d, want %d", got, want)
	}
	if got, want := parts[2].SizeBytes, int64(512<<20); got != want {
		t.Errorf("human size 512M = %d, want %d", got, want)
	}
	if !parts[1].Mounted() {
		t.Error("swap partition should count as mounted")
	}
	if parts[2].Mounted() {
		t.Error("sda3 should be unmounted")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":  "lsblk: unknown column",
		"bad size":  `{"blockdevices":[{"name":"sda","type":"disk","size":"lots"}]}`,
		"bad rota":  `{"blockdevices":[{"name":"sda","type":"disk","rota":"maybe"}]}`,
		"truncated": `{"blockdevices":[{"name":"sda"`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	drives, err := Parse([]byte(`{"blockdevices":[]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(drives) != 0 {
		t.Errorf("drives = %d, want 0", len(drives))
	}
}

func lsblkKey() string {
	return "lsblk -J -b -o " + lsblkColumns
}

func TestEnumerate_MountTableOverlay(t *testing.T) {
	fake := probetest.New(map[string]probetest.Response{
		lsblkKey(): {Stdout: string(readTestdata(t, "lsblk_modern.json"))},
	})
	table := func(context.Context) (map[string]string, error) {
		return map[string]string{"/dev/sdb1": "/mnt/backup"}, nil
	}

	drives, err := New(fake, WithMountTable(table)).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	sdb1 := drives[1].Partitions[0]
	if mp := sdb1.MountPoint; mp == nil || *mp != "/mnt/backup" {
		t.Errorf("sdb1 mountpoint = %v, want /mnt/backup from mount table", mp)
	}
	// Entries absent from the table keep lsblk's answer.
	if mp := drives[0].Partitions[0].MountPoint; mp == nil || *mp != "/boot/efi" {
		t.Errorf("sda1 mountpoint = %v", mp)
	}
}

func TestEnumerate_MountTableUnavailable(t *testing.T) {
	fake := probetest.New(map[string]probetest.Response{
		lsblkKey(): {Stdout: string(readTestdata(t, "lsblk_modern.json"))},
	})
	table := func(context.Context) (map[string]string, error) {
		return nil, errors.New("open /proc/self/mountinfo: no such file")
	}

	drives, err := New(fake, WithMountTable(table)).Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if !drives[0].Partitions[0].Mounted() {
		t.Error("lsblk mount point should be used when the table cannot be read")
	}
}

func TestEnumerate_DeviceFilter(t *testing.T) {
	fake := probetest.New(map[string]probetest.Response{
		lsblkKey(): {Stdout: string(readTestdata(t, "lsblk_modern.json"))},
	})
	e := New(fake, WithMountTable(noMounts), WithDevices("/dev/sdb", "nvme0n1"))

	drives, err := e.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate() error = %v", err)
	}
	if len(drives) != 2 || drives[0].Name != "sdb" || drives[1].Name != "nvme0n1" {
		t.Errorf("filtered drives = %+v", names(drives))
	}
}

func TestEnumerate_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp map[string]probetest.Response
	}{
		{"lsblk missing", map[string]probetest.Response{}},
		{"non-zero exit", map[string]probetest.Response{
			lsblkKey(): {Stderr: "lsblk: unknown column: PATH", ExitCode: 1},
		}},
		{"unparseable", map[string]probetest.Response{
			lsblkKey(): {Stdout: "garbage"},
		}},
		{"timed out", map[string]probetest.Response{
			lsblkKey(): {Err: probe.ErrTimedOut},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(probetest.New(tc.resp), WithMountTable(noMounts)).Enumerate(context.Background())
			if !errors.Is(err, ErrEnumeration) {
				t.Fatalf("Enumerate() error = %v, want ErrEnumeration", err)
			}
		})
	}
}

func noMounts(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func names(drives []model.Drive) []string {
	out := make([]string, len(drives))
	for i, d := range drives {
		out[i] = d.Name
	}
	return out
}

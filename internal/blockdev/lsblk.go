package blockdev

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/obsidianstack/diskhealth/internal/model"
)

// lsblkColumns are requested explicitly so output does not depend on the
// distribution's default column set.
const lsblkColumns = "NAME,PATH,MODEL,SIZE,TYPE,ROTA,FSTYPE,MOUNTPOINT,UUID,LABEL"

// lsblkArgs is the single invocation made per run.
var lsblkArgs = []string{"-J", "-b", "-o", lsblkColumns}

type lsblkOutput struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

// lsblkDevice mirrors one node of lsblk's JSON tree. Columns missing from an
// older lsblk decode as nil.
type lsblkDevice struct {
	Name        string        `json:"name"`
	Path        *string       `json:"path"`
	Model       *string       `json:"model"`
	Size        flexInt       `json:"size"`
	Type        string        `json:"type"`
	Rota        flexBool      `json:"rota"`
	FSType      *string       `json:"fstype"`
	MountPoint  *string       `json:"mountpoint"`
	MountPoints []*string     `json:"mountpoints"`
	UUID        *string       `json:"uuid"`
	Label       *string       `json:"label"`
	Children    []lsblkDevice `json:"children"`
}

// Parse decodes `lsblk -J` output into drives. Only type "disk" entries are
// kept; their "part" children become partitions. A disk formatted without a
// partition table yields a single WholeDisk partition.
func Parse(data []byte) ([]model.Drive, error) {
	var out lsblkOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode lsblk json: %w", err)
	}

	drives := make([]model.Drive, 0, len(out.BlockDevices))
	for _, dev := range out.BlockDevices {
		if dev.Type != "disk" {
			continue
		}
		d := model.Drive{
			Name:       dev.Name,
			Path:       devPath(dev),
			Model:      modelName(dev.Model),
			SizeBytes:  int64(dev.Size),
			Rotational: bool(dev.Rota),
			Partitions: []model.Partition{},
		}

		for _, child := range dev.Children {
			if child.Type != "part" {
				continue
			}
			d.Partitions = append(d.Partitions, toPartition(child))
		}

		if len(d.Partitions) == 0 && nonEmpty(dev.FSType) != nil {
			p := toPartition(dev)
			p.WholeDisk = true
			d.Partitions = append(d.Partitions, p)
		}
		drives = append(drives, d)
	}
	return drives, nil
}

func toPartition(dev lsblkDevice) model.Partition {
	return model.Partition{
		Name:       dev.Name,
		Path:       devPath(dev),
		SizeBytes:  int64(dev.Size),
		FSType:     nonEmpty(dev.FSType),
		MountPoint: mountPoint(dev),
		UUID:       nonEmpty(dev.UUID),
		Label:      nonEmpty(dev.Label),
	}
}

// mountPoint returns the device's own mount point, or the first one found
// on a holder below it (LUKS, LVM), so a partition backing "/" through
// dm-crypt is not reported as unmounted.
func mountPoint(dev lsblkDevice) *string {
	if mp := nonEmpty(dev.MountPoint); mp != nil {
		return mp
	}
	for _, mp := range dev.MountPoints {
		if mp := nonEmpty(mp); mp != nil {
			return mp
		}
	}
	for _, child := range dev.Children {
		if mp := mountPoint(child); mp != nil {
			return mp
		}
	}
	return nil
}

func devPath(dev lsblkDevice) string {
	if p := nonEmpty(dev.Path); p != nil {
		return *p
	}
	return "/dev/" + dev.Name
}

func modelName(m *string) string {
	if m = nonEmpty(m); m == nil {
		return "Unknown"
	}
	return *m
}

// nonEmpty trims s and maps blank values to nil.
func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// flexInt accepts a JSON number, a numeric string, a human size such as
// "931.5G" (lsblk without -b) or null.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] != '"' {
		n, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("size %s: %w", b, err)
		}
		*f = flexInt(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	// lsblk prints binary units with single-letter suffixes ("G" = GiB).
	n, err := humanize.ParseBytes(s + "iB")
	if err != nil {
		if n, err = humanize.ParseBytes(s); err != nil {
			return fmt.Errorf("size %q: %w", s, err)
		}
	}
	*f = flexInt(n)
	return nil
}

// flexBool accepts true/false, 1/0, "1"/"0" or null.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "true", "1":
		*f = true
	case "false", "0", "null", "":
		*f = false
	default:
		return fmt.Errorf("boolean %s: unrecognised value", b)
	}
	return nil
}

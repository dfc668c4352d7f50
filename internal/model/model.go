package model

import "time"

// Verdict is the overall SMART health verdict for a drive.
type Verdict string

const (
	VerdictPassed    Verdict = "PASSED"
	VerdictFailed    Verdict = "FAILED"
	VerdictUnknown   Verdict = "UNKNOWN"
	VerdictNoSupport Verdict = "NO_SUPPORT"
	VerdictNeedRoot  Verdict = "NEED_ROOT"
)

// Severity tags an Issue.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Class is the urgency bucket a drive's score falls into.
type Class string

const (
	ClassHealthy  Class = "healthy"
	ClassInfo     Class = "info"
	ClassWarning  Class = "warning"
	ClassCritical Class = "critical"
)

// DriveState tracks a drive through the assessment pipeline.
type DriveState string

const (
	StatePending DriveState = "pending"
	StateProbing DriveState = "probing"
	StateScored  DriveState = "scored"
	StateFailed  DriveState = "failed"
)

// Drive is a physical block device as discovered by enumeration.
// It is not modified after enumeration; the pipeline works on copies.
type Drive struct {
	Name       string      `json:"name"`
	Path       string      `json:"path"`
	Model      string      `json:"model"`
	SizeBytes  int64       `json:"size_bytes"`
	Rotational bool        `json:"rotational"`
	Partitions []Partition `json:"partitions"`
}

// Partition is one partition of a Drive, or the drive itself when the
// filesystem was created on the whole disk (WholeDisk).
//
// Nil pointer fields mean "not discovered", never "empty".
type Partition struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	SizeBytes  int64   `json:"size_bytes"`
	FSType     *string `json:"fstype"`
	MountPoint *string `json:"mountpoint"`
	UUID       *string `json:"uuid"`
	Label      *string `json:"label"`
	WholeDisk  bool    `json:"whole_disk,omitempty"`

	Usage          *MountUsage      `json:"usage,omitempty"`
	Check          *FilesystemCheck `json:"fs_check,omitempty"`
	RepairCommand  string           `json:"fsck_command,omitempty"`
	Recommendation string           `json:"recommendation,omitempty"`
}

// Mounted reports whether the partition has an active mount entry.
func (p Partition) Mounted() bool { return p.MountPoint != nil }

// FS returns the filesystem type or "" when unknown.
func (p Partition) FS() string {
	if p.FSType == nil {
		return ""
	}
	return *p.FSType
}

// SmartReport is the normalized result of the SMART probe.
//
// Attributes carries the other error counters smartctl reports (pending,
// uncorrectable, CRC) when they are non-zero. They are informational only.
type SmartReport struct {
	Verdict            Verdict          `json:"health"`
	TemperatureC       *int             `json:"temperature"`
	ReallocatedSectors *int64           `json:"reallocated_sectors"`
	Attributes         map[string]int64 `json:"attributes,omitempty"`
	Note               string           `json:"note,omitempty"`
}

// MountUsage is the capacity of one mounted filesystem.
type MountUsage struct {
	MountPoint string `json:"mountpoint"`
	Device     string `json:"device"`
	UsedBytes  uint64 `json:"used_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
	Percent    int    `json:"percent"`
}

// UsageReport aggregates every mounted filesystem of a drive.
// Percent is the worst (highest) per-mount percentage.
type UsageReport struct {
	UsedBytes  uint64       `json:"used_bytes"`
	TotalBytes uint64       `json:"total_bytes"`
	Percent    int          `json:"percent"`
	Mounts     []MountUsage `json:"mount_points"`
}

// FilesystemCheck is the outcome of a read-only consistency probe.
type FilesystemCheck struct {
	Clean         *bool      `json:"clean"`
	MountCount    *int       `json:"mount_count,omitempty"`
	MaxMountCount *int       `json:"max_mount_count,omitempty"`
	LastChecked   *time.Time `json:"last_checked,omitempty"`
	NeedsCheck    bool       `json:"needs_check"`
	Corrupt       bool       `json:"corrupt,omitempty"`
	State         string     `json:"state,omitempty"`
	Note          string     `json:"note,omitempty"`
}

// Unhealthy reports whether the check found the filesystem not clean or
// due for a check. An unknown clean flag does not count.
func (c *FilesystemCheck) Unhealthy() bool {
	if c == nil {
		return false
	}
	return c.NeedsCheck || (c.Clean != nil && !*c.Clean)
}

// Issue is one fired scoring rule.
type Issue struct {
	Severity     Severity `json:"severity"`
	Contribution int      `json:"contribution"`
	Message      string   `json:"message"`
	Rule         string   `json:"rule"`
}

// IOStats are cumulative block-layer counters for a drive.
type IOStats struct {
	ReadIOs    uint64 `json:"read_ios"`
	WriteIOs   uint64 `json:"write_ios"`
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	IOTimeMs   uint64 `json:"io_time_ms"`
}

// DriveResult is a drive together with everything the pipeline learned
// about it. Score stays nil until the drive is scored, and for failed drives.
type DriveResult struct {
	Drive
	State       DriveState   `json:"state"`
	Score       *int         `json:"score"`
	Class       Class        `json:"class,omitempty"`
	Smart       *SmartReport `json:"smart"`
	Usage       *UsageReport `json:"usage"`
	IOStats     *IOStats     `json:"io_stats,omitempty"`
	Issues      []Issue      `json:"issues"`
	Notes       []string     `json:"notes,omitempty"`
	Error       string       `json:"error,omitempty"`
	ScanSeconds float64      `json:"scan_time"`
}

// Summary counts drives per class and partitions per mount state.
type Summary struct {
	Critical    int     `json:"critical"`
	Warning     int     `json:"warning"`
	Info        int     `json:"info"`
	Healthy     int     `json:"healthy"`
	Failed      int     `json:"failed"`
	Partitions  int     `json:"partitions"`
	Unmounted   int     `json:"unmounted"`
	ScanSeconds float64 `json:"scan_time"`
}

// Report is the final, ordered result of one run.
type Report struct {
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Hostname  string        `json:"hostname,omitempty"`
	IsRoot    bool          `json:"is_root"`
	Drives    []DriveResult `json:"disks"`
	Summary   Summary       `json:"summary"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

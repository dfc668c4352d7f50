package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultMaxWorkers     = 4
	DefaultCommandTimeout = 10 * time.Second
	DefaultMaxMountPoints = 3
	DefaultNotifyCooldown = time.Hour

	// EnvPrefix namespaces environment overrides, e.g. DISKHEALTH_MAX_WORKERS.
	EnvPrefix = "diskhealth"
)

// Config is the top-level configuration. Fields map 1:1 to the sample file
// written by WriteSample.
//
// A loaded Config is treated as immutable: the engine copies what it needs
// at construction and a hot reload produces a new value.
type Config struct {
	Thresholds  Thresholds  `yaml:"thresholds"`
	Performance Performance `yaml:"performance"`
	Output      Output      `yaml:"output"`
	Tools       Tools       `yaml:"tools"`
	Filesystem  Filesystem  `yaml:"filesystem"`
	Export      Export      `yaml:"export"`
	Notify      Notify      `yaml:"notify"`
}

// Thresholds holds every scoring constant. Scores are additive points;
// temperatures are °C and usage values are percent.
type Thresholds struct {
	SmartFailScore              int `yaml:"smart_fail_score"`
	SmartUnknownScore           int `yaml:"smart_unknown_score"`
	SmartNeedRootScore          int `yaml:"smart_need_root_score"`
	SmartNoSupportScore         int `yaml:"smart_no_support_score"`
	ReallocatedSectorMultiplier int `yaml:"reallocated_sector_multiplier"`

	TempCritical      int `yaml:"temp_critical"`
	TempCriticalScore int `yaml:"temp_critical_score"`
	TempWarning       int `yaml:"temp_warning"`
	TempWarningScore  int `yaml:"temp_warning_score"`

	UsageCritical      int `yaml:"usage_critical"`
	UsageCriticalScore int `yaml:"usage_critical_score"`
	UsageWarning       int `yaml:"usage_warning"`
	UsageWarningScore  int `yaml:"usage_warning_score"`
	UsageInfo          int `yaml:"usage_info"`
	UsageInfoScore     int `yaml:"usage_info_score"`

	UnmountedPartitionScore int `yaml:"unmounted_partition_score"`
	UncleanPartitionScore   int `yaml:"unclean_partition_score"`

	// CriticalScore and WarningScore classify a drive's total score.
	CriticalScore int `yaml:"critical_score"`
	WarningScore  int `yaml:"warning_score"`
}

// Performance bounds the run's concurrency and per-command time budget.
type Performance struct {
	// MaxWorkers caps concurrent drives and concurrent external processes.
	MaxWorkers int `yaml:"max_workers"`

	// CommandTimeout applies to every external invocation independently.
	// Accepts integer seconds (10) or a Go duration ("1m30s").
	CommandTimeout Duration `yaml:"command_timeout"`
}

// Output controls the human-readable renderers.
type Output struct {
	MaxMountPointsShown int  `yaml:"max_mount_points_shown"`
	ShowIOStats         bool `yaml:"show_io_stats"`
	ShowUnmounted       bool `yaml:"show_unmounted"`
}

// Tools lists fallback directories searched when a tool is not on PATH,
// which is common under cron and systemd.
type Tools struct {
	SearchPaths []string `yaml:"search_paths"`
}

// Filesystem gates consistency probing of unmounted partitions.
type Filesystem struct {
	CheckUnmounted bool `yaml:"check_unmounted"`

	// RunFsck is accepted for compatibility but never acted on: checks are
	// always read-only.
	RunFsck bool `yaml:"run_fsck"`

	SupportedFS []string `yaml:"supported_fs"`
}

// Export configures the Prometheus textfile written after each run.
type Export struct {
	// Textfile is the .prom path, typically inside node_exporter's
	// --collector.textfile.directory. Empty disables the export.
	Textfile string `yaml:"textfile"`
}

// Notify configures webhook delivery for unhealthy drives.
type Notify struct {
	// MinClass is the lowest drive class that triggers a notification:
	// warning | critical.
	MinClass string `yaml:"min_class"`

	// Cooldown suppresses repeat notifications for a drive whose class has
	// not changed. Only meaningful with --interval.
	Cooldown Duration `yaml:"cooldown"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Duration is a time.Duration that also decodes bare integers as seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.Decode(value.Value)
}

// MarshalYAML writes whole seconds as an integer, like the documented default.
func (d Duration) MarshalYAML() (interface{}, error) {
	td := time.Duration(d)
	if td%time.Second == 0 {
		return int(td / time.Second), nil
	}
	return td.String(), nil
}

// Decode parses "10" as seconds and anything else as a Go duration.
func (d *Duration) Decode(s string) error {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(td)
	return nil
}

// envOverrides are read with envconfig after the file is parsed.
// Nil pointers mean the variable is unset.
type envOverrides struct {
	MaxWorkers     *int    `envconfig:"MAX_WORKERS"`
	CommandTimeout string  `envconfig:"COMMAND_TIMEOUT"`
	CheckUnmounted *bool   `envconfig:"CHECK_UNMOUNTED"`
	Textfile       *string `envconfig:"TEXTFILE"`
}

// Load reads and parses the YAML config file at path, then applies
// environment overrides. An empty path yields the defaults.
// Missing optional fields keep their defaults; unknown keys are ignored.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Thresholds: Thresholds{
			SmartFailScore:              1000,
			SmartUnknownScore:           50,
			SmartNeedRootScore:          10,
			SmartNoSupportScore:         5,
			ReallocatedSectorMultiplier: 100,
			TempCritical:                60,
			TempCriticalScore:           200,
			TempWarning:                 50,
			TempWarningScore:            50,
			UsageCritical:               95,
			UsageCriticalScore:          300,
			UsageWarning:                90,
			UsageWarningScore:           100,
			UsageInfo:                   80,
			UsageInfoScore:              20,
			UnmountedPartitionScore:     30,
			UncleanPartitionScore:       60,
			CriticalScore:               500,
			WarningScore:                100,
		},
		Performance: Performance{
			MaxWorkers:     DefaultMaxWorkers,
			CommandTimeout: Duration(DefaultCommandTimeout),
		},
		Output: Output{
			MaxMountPointsShown: DefaultMaxMountPoints,
			ShowUnmounted:       true,
		},
		Tools: Tools{
			SearchPaths: []string{"/usr/bin", "/bin", "/usr/sbin", "/sbin", "/usr/local/bin", "/usr/local/sbin"},
		},
		Filesystem: Filesystem{
			CheckUnmounted: true,
			SupportedFS:    []string{"ext2", "ext3", "ext4", "xfs", "btrfs", "ntfs", "vfat", "exfat"},
		},
		Notify: Notify{
			MinClass: "critical",
			Cooldown: Duration(DefaultNotifyCooldown),
		},
	}
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}
	if env.MaxWorkers != nil {
		cfg.Performance.MaxWorkers = *env.MaxWorkers
	}
	if env.CommandTimeout != "" {
		if err := cfg.Performance.CommandTimeout.Decode(env.CommandTimeout); err != nil {
			return err
		}
	}
	if env.CheckUnmounted != nil {
		cfg.Filesystem.CheckUnmounted = *env.CheckUnmounted
	}
	if env.Textfile != nil {
		cfg.Export.Textfile = *env.Textfile
	}
	return nil
}

// Validate re-checks cfg after command-line overrides were applied.
func Validate(cfg *Config) error {
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Performance.MaxWorkers <= 0 {
		return errors.New("performance.max_workers must be positive")
	}
	if cfg.Performance.CommandTimeout <= 0 {
		return errors.New("performance.command_timeout must be positive")
	}
	if cfg.Output.MaxMountPointsShown < 0 {
		return errors.New("output.max_mount_points_shown must not be negative")
	}

	t := cfg.Thresholds
	scores := map[string]int{
		"smart_fail_score":              t.SmartFailScore,
		"smart_unknown_score":           t.SmartUnknownScore,
		"smart_need_root_score":         t.SmartNeedRootScore,
		"smart_no_support_score":        t.SmartNoSupportScore,
		"reallocated_sector_multiplier": t.ReallocatedSectorMultiplier,
		"temp_critical_score":           t.TempCriticalScore,
		"temp_warning_score":            t.TempWarningScore,
		"usage_critical_score":          t.UsageCriticalScore,
		"usage_warning_score":           t.UsageWarningScore,
		"usage_info_score":              t.UsageInfoScore,
		"unmounted_partition_score":     t.UnmountedPartitionScore,
		"unclean_partition_score":       t.UncleanPartitionScore,
	}
	for name, v := range scores {
		if v < 0 {
			return fmt.Errorf("thresholds.%s must not be negative", name)
		}
	}
	if t.TempCritical < t.TempWarning {
		return errors.New("thresholds.temp_critical must be >= temp_warning")
	}
	if t.UsageCritical < t.UsageWarning || t.UsageWarning < t.UsageInfo {
		return errors.New("thresholds: usage tiers must satisfy critical >= warning >= info")
	}
	if t.WarningScore <= 0 || t.CriticalScore < t.WarningScore {
		return errors.New("thresholds: critical_score must be >= warning_score > 0")
	}

	switch cfg.Notify.MinClass {
	case "warning", "critical":
	default:
		return fmt.Errorf("notify.min_class: unknown class %q", cfg.Notify.MinClass)
	}
	if cfg.Notify.Cooldown < 0 {
		return errors.New("notify.cooldown must not be negative")
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env is required", i)
		}
	}
	return nil
}

// WriteSample writes the default configuration to path as YAML.
func WriteSample(path string) error {
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	header := "# diskhealth configuration. Missing keys fall back to these defaults.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("config: write sample: %w", err)
	}
	return nil
}

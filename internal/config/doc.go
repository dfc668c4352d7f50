// Package config loads and watches the diskhealth configuration file.
//
// Top-level groups:
//   - thresholds: every scoring constant plus the critical/warning
//     classification boundaries (500 / 100 by default)
//   - performance: max_workers, command_timeout
//   - output: renderer options (mount points shown, I/O stats, unmounted)
//   - tools: fallback search paths for external tools
//   - filesystem: check_unmounted, run_fsck (always a no-op), supported_fs
//   - export: Prometheus textfile path
//   - notify: webhook targets and the minimum class that triggers them
//
// Load(path) applies defaults, parses YAML with gopkg.in/yaml.v3, applies
// DISKHEALTH_* environment overrides with envconfig, then validates.
//
// Watch(ctx, path, onChange) uses fsnotify to detect edits and hands the
// newly parsed Config to onChange. A Config is never mutated in place after
// it has been handed to the engine.
package config

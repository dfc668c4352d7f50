// Package engine schedules the per-drive probes and scores each drive.
//
// Drives are fanned out over an errgroup limited to max_workers. Inside a
// drive, SMART, usage and one inspection per unmounted partition run
// concurrently. All external commands share a second budget of max_workers
// slots through probe.Limit, so the process count stays bounded no matter
// how the work is split.
//
// Each drive moves pending → probing → scored, or to failed on panic or
// cancellation. Only enumeration failure is returned as an error.
package engine

// Package probe runs external diagnostic commands (lsblk, smartctl, blkid,
// dumpe2fs and friends) and captures their output.
//
// Exec is the production Runner: it resolves the tool through a Resolver
// (PATH, then configured search paths), applies a per-invocation timeout and
// classifies failures into ErrNotFound, ErrTimedOut and ErrPermissionDenied.
// Limit caps the number of processes alive at once across the whole run.
//
// Parsers never call Exec directly; they take a Runner so tests can supply
// canned output via package probetest.
package probe

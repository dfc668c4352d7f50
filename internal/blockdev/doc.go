// Package blockdev discovers physical drives and their partitions from a
// single `lsblk -J` invocation, overlaid with the kernel mount table.
//
// Parse is pure and tolerant of lsblk version differences: numbers emitted
// as strings, `mountpoints` arrays instead of `mountpoint`, and missing
// columns all decode cleanly.
package blockdev

// Package fscheck inspects unmounted partitions: blkid fills in identity
// lsblk could not report, and a checker chosen by fstype runs a read-only
// consistency probe and proposes the repair command.
//
// Checkers live in a registry keyed by fstype (ext2/3/4, xfs, btrfs, ntfs,
// vfat, exfat). Anything else, or anything outside filesystem.supported_fs,
// gets a no-op checker whose Clean is nil. Nothing in this package runs a
// command that can write to a device.
package fscheck

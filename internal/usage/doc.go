// Package usage reads filesystem capacity for mounted partitions and block
// I/O counters for drives, both through gopsutil.
package usage

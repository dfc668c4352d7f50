// Package model holds the typed health model shared by every stage of a run:
// enumerated drives and partitions, per-probe reports, scoring issues and the
// assembled Report handed to the output layer.
//
// Optional values are pointers. A nil temperature means the probe did not
// report one; it is never a measured zero.
package model

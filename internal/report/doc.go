// Package report merges per-drive results into the final ordered Report.
package report

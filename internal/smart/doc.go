// Package smart turns smartctl output into a model.SmartReport.
//
// Parse is a pure function over the text of `smartctl -H -A`, covering the
// ATA, NVMe and SCSI report layouts. Assessor wraps it with the probe call
// and folds probe failures (missing tool, timeout, permission) into the
// verdict, so callers never see an error from this package.
package smart

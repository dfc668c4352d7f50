// Package export publishes a Report as Prometheus gauges through
// node_exporter's textfile collector.
//
// Series (all gauges, labelled by device):
//
//	diskhealth_drive_score{model,class}
//	diskhealth_drive_temperature_celsius
//	diskhealth_drive_usage_percent
//	diskhealth_drive_reallocated_sectors
//	diskhealth_drive_smart_status{verdict}
//	diskhealth_drive_assessment_failed
//	diskhealth_partition_unmounted{partition,fstype}
//	diskhealth_run_timestamp_seconds
package export

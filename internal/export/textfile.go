package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/diskhealth/internal/model"
)

const namespace = "diskhealth"

// Families converts a report into gauge families, one sample per drive or
// partition. Failed drives only contribute to the run-level series.
func Families(rep *model.Report) []*dto.MetricFamily {
	score := family("drive_score", "Additive severity score of the drive; higher is worse.")
	temp := family("drive_temperature_celsius", "Drive temperature reported by SMART.")
	usagePct := family("drive_usage_percent", "Highest usage percentage across the drive's mounted filesystems.")
	realloc := family("drive_reallocated_sectors", "Reallocated sector count reported by SMART.")
	status := family("drive_smart_status", "SMART verdict of the drive; the sample is always 1.")
	failed := family("drive_assessment_failed", "1 when the drive could not be assessed.")
	unmounted := family("partition_unmounted", "1 when the partition has no active mount.")
	ts := family("run_timestamp_seconds", "Unix time the run started.")

	for _, d := range rep.Drives {
		dev := label("device", d.Path)

		if d.State == model.StateFailed || d.Score == nil {
			failed.Metric = append(failed.Metric, gauge(1, dev))
			continue
		}
		failed.Metric = append(failed.Metric, gauge(0, dev))
		score.Metric = append(score.Metric, gauge(float64(*d.Score), dev, label("model", d.Model), label("class", string(d.Class))))

		if s := d.Smart; s != nil {
			status.Metric = append(status.Metric, gauge(1, dev, label("verdict", string(s.Verdict))))
			if s.TemperatureC != nil {
				temp.Metric = append(temp.Metric, gauge(float64(*s.TemperatureC), dev))
			}
			if s.ReallocatedSectors != nil {
				realloc.Metric = append(realloc.Metric, gauge(float64(*s.ReallocatedSectors), dev))
			}
		}
		if d.Usage != nil {
			usagePct.Metric = append(usagePct.Metric, gauge(float64(d.Usage.Percent), dev))
		}
		for _, p := range d.Partitions {
			v := 0.0
			if !p.Mounted() {
				v = 1
			}
			unmounted.Metric = append(unmounted.Metric, gauge(v, dev, label("partition", p.Path), label("fstype", p.FS())))
		}
	}
	ts.Metric = append(ts.Metric, gauge(float64(rep.Timestamp.Unix())))

	var out []*dto.MetricFamily
	for _, f := range []*dto.MetricFamily{score, temp, usagePct, realloc, status, failed, unmounted, ts} {
		if len(f.Metric) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// Encode writes the families in the Prometheus text exposition format.
func Encode(families []*dto.MetricFamily) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, f); err != nil {
			return nil, fmt.Errorf("export: encode %s: %w", f.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// WriteTextfile writes rep to path for node_exporter's textfile collector.
// The file is replaced atomically so a scrape never sees a partial write.
func WriteTextfile(path string, rep *model.Report) error {
	data, err := Encode(Families(rep))
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("export: chmod %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename to %s: %w", path, err)
	}

	slog.Debug("export: textfile written", "path", path, "bytes", len(data))
	return nil
}

func family(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: model.Ptr(namespace + "_" + name),
		Help: model.Ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: model.Ptr(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: model.Ptr(name), Value: model.Ptr(value)}
}

package smart

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// ParseError reports smartctl output that carried no usable health verdict.
// The partially parsed report is still returned alongside it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "smart: parse: " + e.Reason }

// ATA attribute IDs read from the attribute table.
const (
	attrReallocated     = 5
	attrAirflowTemp     = 190
	attrTemperature     = 194
	attrReportedUncorr  = 187
	attrCommandTimeout  = 188
	attrPendingSectors  = 197
	attrOfflineUncorr   = 198
	attrUDMACRCErrors   = 199
	minAttributeColumns = 10
)

// counterAttrs are surfaced in SmartReport.Attributes when non-zero.
var counterAttrs = map[int]string{
	attrReportedUncorr: "reported_uncorrect",
	attrCommandTimeout: "command_timeout",
	attrPendingSectors: "current_pending_sector",
	attrOfflineUncorr:  "offline_uncorrectable",
	attrUDMACRCErrors:  "udma_crc_error_count",
}

// Markers smartctl prints when the device cannot report SMART at all.
// smartctl pads the "SMART support is:" column, hence the regexps.
var unsupportedMarkers = []*regexp.Regexp{
	regexp.MustCompile(`SMART support is:\s*Unavailable`),
	regexp.MustCompile(`Unknown USB bridge`),
	regexp.MustCompile(`Unable to detect device type`),
	regexp.MustCompile(`Device type not supported`),
}

var (
	reATAHealth  = regexp.MustCompile(`SMART overall-health self-assessment test result:\s*(\S+)`)
	reSCSIHealth = regexp.MustCompile(`SMART Health Status:\s*(.+)`)
	reSCSITemp   = regexp.MustCompile(`Current Drive Temperature:\s*(\d+)\s*C`)
	reNVMeTemp   = regexp.MustCompile(`(?m)^(?:Current )?Temperature:\s*(\d+)\s*Celsius`)
	reDefects    = regexp.MustCompile(`Elements in grown defect list:\s*(\d+)`)
	reLeadingInt = regexp.MustCompile(`^\d+`)
)

// Parse normalizes the combined output of `smartctl -H -A` into a report.
//
// The verdict is UNKNOWN with a *ParseError when no health line is present;
// the caller decides whether that means the run lacked privileges.
// Temperature is nil when not reported. ReallocatedSectors is nil when no
// attribute section was printed, and 0 when one was printed without the
// reallocated counter.
func Parse(text string) (model.SmartReport, error) {
	if probe.PermissionDenied(text) {
		return model.SmartReport{
			Verdict: model.VerdictNeedRoot,
			Note:    "smartctl could not open the device without root",
		}, nil
	}
	for _, re := range unsupportedMarkers {
		if m := re.FindString(text); m != "" {
			return model.SmartReport{
				Verdict: model.VerdictNoSupport,
				Note:    m,
			}, nil
		}
	}

	rep := model.SmartReport{Verdict: model.VerdictUnknown}

	attrs, hasTable := parseAttributeTable(text)
	rep.TemperatureC = temperature(text, attrs)
	rep.ReallocatedSectors = reallocated(text, attrs, hasTable)
	for id, name := range counterAttrs {
		if v, ok := attrs[id]; ok && v > 0 {
			if rep.Attributes == nil {
				rep.Attributes = make(map[string]int64)
			}
			rep.Attributes[name] = v
		}
	}

	switch {
	case reATAHealth.MatchString(text):
		res := reATAHealth.FindStringSubmatch(text)[1]
		if strings.HasPrefix(res, "PASSED") {
			rep.Verdict = model.VerdictPassed
		} else {
			rep.Verdict = model.VerdictFailed
		}
	case reSCSIHealth.MatchString(text):
		res := strings.TrimSpace(reSCSIHealth.FindStringSubmatch(text)[1])
		if res == "OK" {
			rep.Verdict = model.VerdictPassed
		} else {
			rep.Verdict = model.VerdictFailed
			rep.Note = res
		}
	default:
		return rep, &ParseError{Reason: "no health verdict in smartctl output"}
	}
	return rep, nil
}

// parseAttributeTable reads the ATA "ID# ATTRIBUTE_NAME ..." table into raw
// values keyed by attribute ID. The bool reports whether any SMART data
// section was present (ATA table, NVMe health log or SCSI defect list).
func parseAttributeTable(text string) (map[int]int64, bool) {
	attrs := make(map[int]int64)
	present := strings.Contains(text, "SMART/Health Information") ||
		reDefects.MatchString(text)

	inTable := false
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "ID#") {
			inTable, present = true, true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			inTable = false
			continue
		}
		if len(fields) < minAttributeColumns {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		// RAW_VALUE may carry a suffix such as "35 (Min/Max 20/45)".
		raw := reLeadingInt.FindString(fields[9])
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		attrs[id] = v
	}
	return attrs, present
}

func temperature(text string, attrs map[int]int64) *int {
	if v, ok := attrs[attrTemperature]; ok {
		return model.Ptr(int(v))
	}
	if v, ok := attrs[attrAirflowTemp]; ok {
		return model.Ptr(int(v))
	}
	for _, re := range []*regexp.Regexp{reSCSITemp, reNVMeTemp} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return model.Ptr(v)
			}
		}
	}
	return nil
}

func reallocated(text string, attrs map[int]int64, hasTable bool) *int64 {
	if v, ok := attrs[attrReallocated]; ok {
		return model.Ptr(v)
	}
	if m := reDefects.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return model.Ptr(v)
		}
	}
	if hasTable {
		return model.Ptr(int64(0))
	}
	return nil
}

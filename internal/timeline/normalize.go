package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"telemetry_dashboard/internal/models"
)

// Documented fallbacks for absent fields.
const (
	DefaultShift    = "Shift-A"
	DefaultDesign   = "Design123"
	DefaultStatus   = models.StatusOff
	DefaultDuration = "0h 0m"
)

// Canonical field names used as keys of fieldAliases.
const (
	fieldDevice     = "deviceId"
	fieldCreated    = "created"
	fieldStarted    = "started"
	fieldShift      = "shift"
	fieldDesign     = "design"
	fieldCount      = "count"
	fieldEfficiency = "efficiency"
	fieldError1     = "error1"
	fieldError2     = "error2"
	fieldStatus     = "status"
	fieldDuration   = "duration"
)

// fieldAliases maps each canonical field to the raw keys that may carry it, in
// priority order. Snapshot items use camelCase keys, push events use
// snake_case or the machine-prefixed names.
var fieldAliases = map[string][]string{
	fieldDevice:     {"deviceId", "device_id", "machineId", "machine_id"},
	fieldCreated:    {"createdAt", "created_at", "timestamp"},
	fieldStarted:    {"startTime", "start_time", "startedAt"},
	fieldShift:      {"shift", "shiftName", "shift_name"},
	fieldDesign:     {"design", "designId", "design_id"},
	fieldCount:      {"count", "productionCount", "production_count"},
	fieldEfficiency: {"efficiency", "efficiencyPct"},
	fieldError1:     {"error1", "error_1"},
	fieldError2:     {"error2", "error_2"},
	fieldStatus:     {"status", "machineStatus", "machine_status"},
	fieldDuration:   {"duration", "runDuration", "run_duration"},
}

// timeLayouts are the accepted textual timestamp formats.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalize converts a snapshot item or a push event into a TelemetryRecord.
// It never fails: absent or unusable fields take their documented defaults,
// the device falls back to fallbackDevice and the timestamp to now.
func Normalize(raw map[string]any, fallbackDevice string, now time.Time) models.TelemetryRecord {
	return models.TelemetryRecord{
		DeviceID:   stringField(raw, fieldDevice, fallbackDevice),
		Timestamp:  resolveTimestamp(raw, now),
		Shift:      stringField(raw, fieldShift, DefaultShift),
		Design:     stringField(raw, fieldDesign, DefaultDesign),
		Count:      intField(raw, fieldCount),
		Efficiency: FormatEfficiency(floatField(raw, fieldEfficiency)),
		Error1:     intField(raw, fieldError1),
		Error2:     intField(raw, fieldError2),
		Status:     statusField(raw),
		Duration:   durationField(raw),
	}
}

// NormalizeSummary maps the aggregate fields of a snapshot payload.
func NormalizeSummary(raw map[string]any) models.SnapshotSummary {
	s := models.SnapshotSummary{
		DeviceID:          stringValue(lookup(raw, "deviceId", "device_id")),
		TotalProduction:   toInt(lookup(raw, "totalProduction", "total_production")),
		AverageEfficiency: FormatEfficiency(toFloat(lookup(raw, "averageEfficiency", "avgEfficiency", "average_efficiency"))),
		Error1Count:       toInt(lookup(raw, "error1Count", "totalError1", "error1_count")),
		Error2Count:       toInt(lookup(raw, "error2Count", "totalError2", "error2_count")),
		StatusChanges:     toInt(lookup(raw, "statusChanges", "status_changes")),
		OnCycles:          toInt(lookup(raw, "onCycles", "on_cycles")),
		OffCycles:         toInt(lookup(raw, "offCycles", "off_cycles")),
		Designs:           stringList(lookup(raw, "designs", "designList")),
	}
	if v := lookup(raw, "totalErrors", "total_errors"); v != nil {
		s.TotalErrors = toInt(v)
	} else {
		s.TotalErrors = s.Error1Count + s.Error2Count
	}
	return s
}

// FormatEfficiency renders a non-negative efficiency with two decimals.
func FormatEfficiency(v float64) string {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatDuration renders d as the "Xh Ym" display form.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}

func lookup(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func field(raw map[string]any, name string) any {
	return lookup(raw, fieldAliases[name]...)
}

func stringField(raw map[string]any, name, fallback string) string {
	if s := stringValue(field(raw, name)); s != "" {
		return s
	}
	return fallback
}

func intField(raw map[string]any, name string) int64 { return toInt(field(raw, name)) }

func floatField(raw map[string]any, name string) float64 { return toFloat(field(raw, name)) }

func statusField(raw map[string]any) string {
	switch v := field(raw, fieldStatus).(type) {
	case bool:
		if v {
			return models.StatusOn
		}
	case string:
		if strings.EqualFold(strings.TrimSpace(v), models.StatusOn) {
			return models.StatusOn
		}
	case float64, json.Number, int, int64:
		if toInt(v) == 1 {
			return models.StatusOn
		}
	}
	return DefaultStatus
}

func durationField(raw map[string]any) string {
	switch v := field(raw, fieldDuration).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64, json.Number, int, int64:
		// numeric durations are seconds
		secs := min(toInt(v), int64(math.MaxInt64/time.Second))
		return FormatDuration(time.Duration(secs) * time.Second)
	}
	return DefaultDuration
}

func resolveTimestamp(raw map[string]any, now time.Time) time.Time {
	for _, name := range []string{fieldCreated, fieldStarted} {
		if t, ok := toTime(field(raw, name)); ok {
			return t
		}
	}
	return now.UTC()
}

func toTime(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC(), !tv.IsZero()
	case string:
		s := strings.TrimSpace(tv)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n), true
		}
	case float64:
		return fromEpoch(tv), true
	case json.Number:
		if n, err := tv.Float64(); err == nil {
			return fromEpoch(n), true
		}
	case int64:
		return fromEpoch(float64(tv)), true
	case int:
		return fromEpoch(float64(tv)), true
	}
	return time.Time{}, false
}

// fromEpoch accepts seconds or milliseconds; values past 1e12 are milliseconds.
func fromEpoch(n float64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func toFloat(v any) float64 {
	var f float64
	switch tv := v.(type) {
	case float64:
		f = tv
	case float32:
		f = float64(tv)
	case int:
		f = float64(tv)
	case int64:
		f = float64(tv)
	case json.Number:
		f, _ = tv.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(tv), 64)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// toInt clamps to [0, math.MaxInt64]. Integer text and json.Number are parsed
// exactly before falling back to float conversion.
func toInt(v any) int64 {
	switch tv := v.(type) {
	case int64:
		return max(tv, 0)
	case int:
		return int64(max(tv, 0))
	case json.Number:
		if n, err := tv.Int64(); err == nil {
			return max(n, 0)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(tv), 10, 64); err == nil {
			return max(n, 0)
		}
	}
	f := toFloat(v)
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func stringValue(v any) string {
	switch tv := v.(type) {
	case string:
		return strings.TrimSpace(tv)
	case json.Number:
		return tv.String()
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	}
	return ""
}

func stringList(v any) []string {
	var out []string
	switch tv := v.(type) {
	case []string:
		for _, s := range tv {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range tv {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

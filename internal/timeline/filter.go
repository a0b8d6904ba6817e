package timeline

import "telemetry_dashboard/internal/models"

// Filter returns the records matching every non-All field of sel. The input is
// never modified; the result is a fresh slice.
func Filter(records []models.TelemetryRecord, sel models.FilterSelection) []models.TelemetryRecord {
	sel = sel.Normalized()
	out := make([]models.TelemetryRecord, 0, len(records))
	for _, r := range records {
		if Matches(r, sel) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether r passes sel. Comparison is exact and case-sensitive.
func Matches(r models.TelemetryRecord, sel models.FilterSelection) bool {
	return matchField(sel.Device, r.DeviceID) &&
		matchField(sel.Shift, r.Shift) &&
		matchField(sel.Design, r.Design) &&
		matchField(sel.Status, r.Status)
}

func matchField(want, got string) bool {
	return want == "" || want == models.All || want == got
}

package timeline

import "telemetry_dashboard/internal/models"

// ComputeFacets lists distinct device, shift, design and status values in order
// of first appearance. Designs come from summary when it carries a non-empty
// list.
func ComputeFacets(records []models.TelemetryRecord, summary *models.SnapshotSummary) models.Facets {
	var (
		devices  = newOrderedSet()
		shifts   = newOrderedSet()
		designs  = newOrderedSet()
		statuses = newOrderedSet()
	)
	for _, r := range records {
		devices.add(r.DeviceID)
		shifts.add(r.Shift)
		designs.add(r.Design)
		statuses.add(r.Status)
	}

	f := models.Facets{
		Devices:  devices.items,
		Shifts:   shifts.items,
		Designs:  designs.items,
		Statuses: statuses.items,
	}
	if summary != nil && len(summary.Designs) > 0 {
		fromSummary := newOrderedSet()
		for _, d := range summary.Designs {
			fromSummary.add(d)
		}
		f.Designs = fromSummary.items
	}
	return f
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

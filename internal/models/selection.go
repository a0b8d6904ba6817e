package models

// All is the filter sentinel matching every value.
const All = "ALL"

// FilterSelection is the user's current filter. Empty fields are treated as All.
type FilterSelection struct {
	Device string `json:"device"`
	Shift  string `json:"shift"`
	Design string `json:"design"`
	Status string `json:"status"`
}

// AllSelection returns a selection with every field set to All.
func AllSelection() FilterSelection {
	return FilterSelection{Device: All, Shift: All, Design: All, Status: All}
}

// Normalized replaces empty fields with All.
func (s FilterSelection) Normalized() FilterSelection {
	orAll := func(v string) string {
		if v == "" {
			return All
		}
		return v
	}
	return FilterSelection{
		Device: orAll(s.Device),
		Shift:  orAll(s.Shift),
		Design: orAll(s.Design),
		Status: orAll(s.Status),
	}
}

// Facets lists the distinct filter values currently observable.
type Facets struct {
	Devices  []string `json:"devices"`
	Shifts   []string `json:"shifts"`
	Designs  []string `json:"designs"`
	Statuses []string `json:"statuses"`
}

// LiveState is the connection state of the live channel.
type LiveState string

const (
	LiveDisconnected LiveState = "disconnected"
	LiveConnecting   LiveState = "connecting"
	LiveJoined       LiveState = "joined"
)

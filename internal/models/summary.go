package models

// SnapshotSummary carries the aggregates precomputed by the collaborator for
// one device snapshot.
type SnapshotSummary struct {
	DeviceID          string   `json:"deviceId"`
	TotalProduction   int64    `json:"totalProduction"`
	AverageEfficiency string   `json:"averageEfficiency"`
	TotalErrors       int64    `json:"totalErrors"`
	Error1Count       int64    `json:"error1Count"`
	Error2Count       int64    `json:"error2Count"`
	StatusChanges     int64    `json:"statusChanges"`
	OnCycles          int64    `json:"onCycles"`
	OffCycles         int64    `json:"offCycles"`
	Designs           []string `json:"designs,omitempty"`
}

// Snapshot is a successful pull: the device timeline in delivery order plus
// its summary.
type Snapshot struct {
	Records []TelemetryRecord
	Summary SnapshotSummary
}

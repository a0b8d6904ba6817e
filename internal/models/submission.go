package models

// Submission is one telemetry observation posted to the collaborator write
// endpoint (manual or test trigger).
type Submission struct {
	DeviceID    string   `json:"deviceId" binding:"required"`
	Status      string   `json:"status"`
	Shift       string   `json:"shift"`
	Design      string   `json:"design"`
	Count       int64    `json:"count"`
	Efficiency  float64  `json:"efficiency"`
	Error1      int64    `json:"error1"`
	Error2      int64    `json:"error2"`
	Duration    string   `json:"duration"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Vibration   *float64 `json:"vibration,omitempty"`
}

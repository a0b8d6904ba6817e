package models

import "time"

// Status values a record can carry.
const (
	StatusOn  = "ON"
	StatusOff = "OFF"
)

// TelemetryRecord is one observed machine status sample. Values are never
// mutated after normalization; pass them by value.
type TelemetryRecord struct {
	DeviceID   string    `json:"deviceId" msgpack:"deviceId"`
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	Shift      string    `json:"shift" msgpack:"shift"`
	Design     string    `json:"design" msgpack:"design"`
	Count      int64     `json:"count" msgpack:"count"`
	Efficiency string    `json:"efficiency" msgpack:"efficiency"` // two decimals, e.g. "3.50"
	Error1     int64     `json:"error1" msgpack:"error1"`
	Error2     int64     `json:"error2" msgpack:"error2"`
	Status     string    `json:"status" msgpack:"status"` // ON | OFF
	Duration   string    `json:"duration" msgpack:"duration"`
}

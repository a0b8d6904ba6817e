package telemetry_dashboard

import "encoding/json"

// SnapshotResponse is the envelope returned by the collaborator history
// endpoint. Data is decoded lazily because its shape is loosely typed.
type SnapshotResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SubmitResponse is the envelope returned by the collaborator write endpoint.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LiveEnvelope is one frame on the live channel. Frames that carry a record
// without a wrapper are decoded into Data by the adapter.
type LiveEnvelope struct {
	Type string         `json:"type"`
	Room string         `json:"room,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

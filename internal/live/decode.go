package live

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Frame types carrying telemetry. Any other typed frame (join acks, errors,
// presence) is ignored.
var telemetryTypes = map[string]bool{
	"telemetry":        true,
	"telemetry_update": true,
	"telemetry-update": true,
}

// DecodeEvent extracts the event object from a live frame. It accepts either
// an envelope {"type":"telemetry","data":{...}} or a bare event object.
// Numbers are kept as json.Number.
func DecodeEvent(payload []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, false
	}

	typ, _ := raw["type"].(string)
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ != "" && !telemetryTypes[typ] {
		return nil, false
	}
	if data, ok := raw["data"].(map[string]any); ok {
		return data, true
	}
	if typ != "" {
		delete(raw, "type")
	}
	return raw, true
}

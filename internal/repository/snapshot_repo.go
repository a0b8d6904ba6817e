package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"telemetry_dashboard"
	"telemetry_dashboard/internal/clock"
	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/repository/rest"
	"telemetry_dashboard/internal/timeline"
)

const historyPath = "/api/telemetry/history/"

type SnapshotHTTP struct {
	client *rest.Client
	clock  clock.Clock
}

func NewSnapshotHTTP(client *rest.Client, clk clock.Clock) *SnapshotHTTP {
	if clk == nil {
		clk = clock.Real()
	}
	return &SnapshotHTTP{client: client, clock: clk}
}

// Fetch pulls GET /api/telemetry/history/{deviceId}. Records are returned in
// the order the collaborator delivered them (oldest first). Failures are
// *models.FetchError values classified as ErrNetworkFailure (transport error,
// non-2xx) or ErrApplicationFailure (success:false, unreadable payload).
func (r *SnapshotHTTP) Fetch(ctx context.Context, deviceID string) (models.Snapshot, error) {
	resp, err := r.client.Do(ctx, http.MethodGet, historyPath+url.PathEscape(deviceID), nil)
	if err != nil {
		return models.Snapshot{}, fetchErr(deviceID, models.ErrNetworkFailure, err)
	}
	if !resp.OK() {
		return models.Snapshot{}, fetchErr(deviceID, models.ErrNetworkFailure,
			fmt.Errorf("unexpected status %d", resp.Status))
	}

	var env telemetry_dashboard.SnapshotResponse
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return models.Snapshot{}, fetchErr(deviceID, models.ErrApplicationFailure,
			fmt.Errorf("decode envelope: %w", err))
	}
	if !env.Success {
		var cause error
		if env.Message != "" {
			cause = errors.New(env.Message)
		}
		return models.Snapshot{}, fetchErr(deviceID, models.ErrApplicationFailure, cause)
	}

	data, err := decodeObject(env.Data)
	if err != nil {
		return models.Snapshot{}, fetchErr(deviceID, models.ErrApplicationFailure,
			fmt.Errorf("decode data: %w", err))
	}
	return r.toSnapshot(deviceID, data), nil
}

func (r *SnapshotHTTP) toSnapshot(deviceID string, data map[string]any) models.Snapshot {
	now := r.clock.Now()

	items, _ := data["timeline"].([]any)
	records := make([]models.TelemetryRecord, 0, len(items))
	for _, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, timeline.Normalize(raw, deviceID, now))
	}

	summaryRaw := data
	if nested, ok := data["summary"].(map[string]any); ok {
		summaryRaw = nested
	}
	summary := timeline.NormalizeSummary(summaryRaw)
	if summary.DeviceID == "" {
		summary.DeviceID = deviceID
	}
	return models.Snapshot{Records: records, Summary: summary}
}

// decodeObject decodes raw into a map keeping numbers as json.Number. An
// absent or null payload yields an empty map.
func decodeObject(raw json.RawMessage) (map[string]any, error) {
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func fetchErr(device string, kind, cause error) *models.FetchError {
	return &models.FetchError{Device: device, Kind: kind, Err: cause}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"telemetry_dashboard"
	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/repository/rest"
)

const submitPath = "/api/telemetry"

type EventHTTP struct {
	client *rest.Client
}

func NewEventHTTP(client *rest.Client) *EventHTTP { return &EventHTTP{client: client} }

// Submit posts one observation. The returned error wraps ErrNetworkFailure or
// ErrApplicationFailure.
func (r *EventHTTP) Submit(ctx context.Context, s models.Submission) error {
	resp, err := r.client.Do(ctx, http.MethodPost, submitPath, s)
	if err != nil {
		return fmt.Errorf("submit %s: %w: %w", s.DeviceID, models.ErrNetworkFailure, err)
	}
	if !resp.OK() {
		return fmt.Errorf("submit %s: %w: unexpected status %d", s.DeviceID, models.ErrNetworkFailure, resp.Status)
	}

	var env telemetry_dashboard.SubmitResponse
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("submit %s: %w: decode envelope: %w", s.DeviceID, models.ErrApplicationFailure, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "rejected"
		}
		return fmt.Errorf("submit %s: %w: %w", s.DeviceID, models.ErrApplicationFailure, errors.New(msg))
	}
	return nil
}

package repository

import (
	"context"

	"telemetry_dashboard/internal/clock"
	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/repository/rest"
)

// SnapshotRepo pulls the authoritative history of one device.
type SnapshotRepo interface {
	Fetch(ctx context.Context, deviceID string) (models.Snapshot, error)
}

// EventRepo submits a telemetry observation to the collaborator.
type EventRepo interface {
	Submit(ctx context.Context, s models.Submission) error
}

type Repository struct {
	Snapshots SnapshotRepo
	Events    EventRepo
}

func NewRepository(client *rest.Client, clk clock.Clock) *Repository {
	return &Repository{
		Snapshots: NewSnapshotHTTP(client, clk),
		Events:    NewEventHTTP(client),
	}
}

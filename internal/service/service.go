package service

import (
	"context"
	"time"

	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/repository"
)

// Dashboard exposes the reconciled timeline: read-only views plus the
// selection and refresh operations that mutate it.
type Dashboard interface {
	View() *View
	Facets() models.Facets
	Select(ctx context.Context, sel models.FilterSelection) (Pending, error)
	Refresh(ctx context.Context) error
}

// Submitter forwards telemetry observations to the collaborator.
type Submitter interface {
	Submit(ctx context.Context, s models.Submission) error
}

// AutoRefresh controls the periodic snapshot trigger.
type AutoRefresh interface {
	Configure(enabled bool, interval time.Duration) error
	Settings() RefreshSettings
}

// Authorization verifies bearer tokens presented by API consumers.
type Authorization interface {
	Enabled() bool
	ParseToken(accessToken string) (string, error)
}

// Service aggregates all sub-services.
type Service struct {
	Dashboard
	Submitter
	AutoRefresh
	Authorization
}

// NewService wires the repository layer and the long-running components into
// the aggregate consumed by the handlers.
func NewService(repos *repository.Repository, engine *Engine, scheduler *Scheduler, auth *AuthService, deps Deps) *Service {
	return &Service{
		Dashboard:     engine,
		Submitter:     NewSubmitService(repos.Events, deps),
		AutoRefresh:   scheduler,
		Authorization: auth,
	}
}

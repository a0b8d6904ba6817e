package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/metrics"
	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/repository"
	"telemetry_dashboard/internal/timeline"
)

// ErrInvalidSubmission is returned when a submission fails validation.
var ErrInvalidSubmission = errors.New("invalid submission")

// Deps carries the ambient collaborators shared by the services.
type Deps struct {
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}
	return d
}

// SubmitService validates observations and posts them through the event repo.
// Submissions never touch the engine state.
type SubmitService struct {
	events repository.EventRepo
	deps   Deps
}

func NewSubmitService(events repository.EventRepo, deps Deps) *SubmitService {
	return &SubmitService{events: events, deps: deps.withDefaults()}
}

// Submit fills defaults, validates and forwards s.
func (s *SubmitService) Submit(ctx context.Context, sub models.Submission) error {
	sub, err := normalizeSubmission(sub)
	if err != nil {
		s.deps.Metrics.Submissions.WithLabelValues("invalid").Inc()
		return err
	}
	if err := s.events.Submit(ctx, sub); err != nil {
		s.deps.Metrics.Submissions.WithLabelValues("failed").Inc()
		s.deps.Log.Warnw("submission_failed", "device", sub.DeviceID, "err", err)
		return err
	}
	s.deps.Metrics.Submissions.WithLabelValues("ok").Inc()
	s.deps.Log.Infow("submission_sent", "device", sub.DeviceID, "status", sub.Status)
	return nil
}

func normalizeSubmission(sub models.Submission) (models.Submission, error) {
	sub.DeviceID = strings.TrimSpace(sub.DeviceID)
	if sub.DeviceID == "" {
		return sub, fmt.Errorf("%w: deviceId is required", ErrInvalidSubmission)
	}

	switch status := strings.ToUpper(strings.TrimSpace(sub.Status)); status {
	case "":
		sub.Status = timeline.DefaultStatus
	case models.StatusOn, models.StatusOff:
		sub.Status = status
	default:
		return sub, fmt.Errorf("%w: status must be ON or OFF, got %q", ErrInvalidSubmission, sub.Status)
	}

	if sub.Count < 0 || sub.Error1 < 0 || sub.Error2 < 0 || sub.Efficiency < 0 {
		return sub, fmt.Errorf("%w: counters must be non-negative", ErrInvalidSubmission)
	}

	if strings.TrimSpace(sub.Shift) == "" {
		sub.Shift = timeline.DefaultShift
	}
	if strings.TrimSpace(sub.Design) == "" {
		sub.Design = timeline.DefaultDesign
	}
	if strings.TrimSpace(sub.Duration) == "" {
		sub.Duration = timeline.DefaultDuration
	}
	return sub, nil
}

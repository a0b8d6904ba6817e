package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"telemetry_dashboard/internal/clock"
	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/metrics"
)

// ErrInvalidInterval is returned for refresh intervals outside AllowedIntervals.
var ErrInvalidInterval = errors.New("invalid refresh interval")

// AllowedIntervals are the refresh periods a user can pick.
var AllowedIntervals = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// DefaultInterval is used when auto-refresh is enabled without an interval.
const DefaultInterval = 30 * time.Second

// RefreshSettings is the current auto-refresh configuration.
type RefreshSettings struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"-"`
	Seconds  int           `json:"intervalSeconds"`
}

// TriggerFunc starts one periodic refresh.
type TriggerFunc func(ctx context.Context)

// Scheduler fires trigger every interval while enabled. At most one timer
// goroutine exists at any time.
type Scheduler struct {
	trigger TriggerFunc
	clock   clock.Clock
	log     *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	settings RefreshSettings
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(trigger TriggerFunc, clk clock.Clock, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Scheduler{
		trigger:  trigger,
		clock:    clk,
		log:      log,
		metrics:  m,
		settings: RefreshSettings{Interval: DefaultInterval, Seconds: int(DefaultInterval / time.Second)},
	}
}

// ValidInterval reports whether d is one of AllowedIntervals.
func ValidInterval(d time.Duration) bool { return slices.Contains(AllowedIntervals, d) }

// Configure cancels the running timer, waits for it to exit, and arms a new
// one only when enabled. A zero interval keeps the previous one.
func (s *Scheduler) Configure(enabled bool, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if interval == 0 {
		interval = s.settings.Interval
	}
	if !ValidInterval(interval) {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.stopLocked()
	s.settings = RefreshSettings{Enabled: enabled, Interval: interval, Seconds: int(interval / time.Second)}
	if !enabled {
		s.metrics.SchedulerEnabled.Set(0)
		s.log.Infow("auto_refresh_disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	// created here so the first deadline is measured from Configure
	ticker := s.clock.NewTicker(interval)
	s.cancel, s.done = cancel, done
	go s.run(ctx, ticker, done)

	s.metrics.SchedulerEnabled.Set(1)
	s.log.Infow("auto_refresh_enabled", "interval", interval.String())
	return nil
}

// Settings returns the current configuration.
func (s *Scheduler) Settings() RefreshSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Close stops the timer. The scheduler may be reconfigured afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.settings.Enabled = false
	s.metrics.SchedulerEnabled.Set(0)
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

func (s *Scheduler) run(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a tick racing with cancellation must not fire
			if ctx.Err() != nil {
				return
			}
			s.log.Debugw("auto_refresh_tick")
			s.trigger(ctx)
		}
	}
}

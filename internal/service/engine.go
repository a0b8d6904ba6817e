package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"telemetry_dashboard/internal/clock"
	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/metrics"
	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/repository"
	"telemetry_dashboard/internal/timeline"
)

// ErrEngineStopped is returned by operations submitted after Run has exited.
var ErrEngineStopped = errors.New("engine stopped")

const taskQueueSize = 256

// View is an immutable copy of the dashboard state published after every
// mutation. Readers must not modify its slices. Device is the resolved fetch
// target; Summary stays nil until the first successful fetch.
type View struct {
	Selection   models.FilterSelection   `json:"selection"`
	Device      string                   `json:"device"`
	Records     []models.TelemetryRecord `json:"-"`
	RecordCount int                      `json:"recordCount"`
	Capacity    int                      `json:"capacity"`
	Summary     *models.SnapshotSummary  `json:"summary"`
	Facets      models.Facets            `json:"facets"`
	LiveState   models.LiveState         `json:"liveState"`
	Loading     bool                     `json:"loading"`
	Warning     string                   `json:"warning,omitempty"`
	LastUpdated time.Time                `json:"lastUpdated"`
	Version     uint64                   `json:"version"`
}

// Filtered returns the records of v that pass its selection.
func (v *View) Filtered() []models.TelemetryRecord {
	return timeline.Filter(v.Records, v.Selection)
}

// Pending resolves once with the outcome of an asynchronous fetch. A nil
// Pending means no fetch was issued.
type Pending <-chan error

// Wait blocks until the fetch resolves or ctx is done.
func (p Pending) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	select {
	case err := <-p:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EngineConfig holds the tunables of the engine.
type EngineConfig struct {
	DefaultDevice string // fetch target while the device selection is All
	Capacity      int    // timeline bound, timeline.DefaultCapacity when <= 0
}

// Engine owns the dashboard state. All mutations run as tasks on the single
// goroutine executing Run; other goroutines only enqueue tasks and read the
// published View.
type Engine struct {
	snapshots repository.SnapshotRepo
	clock     clock.Clock
	log       *logger.Logger
	metrics   *metrics.Metrics
	cfg       EngineConfig

	tasks     chan func()
	stopped   chan struct{}
	enqueueMu sync.RWMutex // held shared while sending to tasks
	view      atomic.Pointer[View]

	// loop-owned state
	runCtx      context.Context
	store       *timeline.Store
	summary     *models.SnapshotSummary
	selection   models.FilterSelection
	liveState   models.LiveState
	warning     string
	lastUpdated time.Time
	inFlight    int
	version     uint64
}

// NewEngine builds an engine with an empty timeline and an all-All selection.
// Run must be started before any operation resolves.
func NewEngine(snapshots repository.SnapshotRepo, clk clock.Clock, log *logger.Logger, m *metrics.Metrics, cfg EngineConfig) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	e := &Engine{
		snapshots: snapshots,
		clock:     clk,
		log:       log,
		metrics:   m,
		cfg:       cfg,
		tasks:     make(chan func(), taskQueueSize),
		stopped:   make(chan struct{}),
		store:     timeline.NewStore(cfg.Capacity),
		selection: models.AllSelection(),
		liveState: models.LiveDisconnected,
	}
	e.publish()
	return e
}

// Run executes queued tasks one at a time until ctx is canceled. Tasks
// already queued at that point still run before Run returns.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case task := <-e.tasks:
			task()
		}
	}
}

// shutdown rejects new tasks, waits for enqueuers still sending, and runs
// whatever they left in the queue so every Pending resolves.
func (e *Engine) shutdown() {
	close(e.stopped)
	e.enqueueMu.Lock()
	defer e.enqueueMu.Unlock()
	for {
		select {
		case task := <-e.tasks:
			task()
		default:
			return
		}
	}
}

// View returns the latest published state.
func (e *Engine) View() *View { return e.view.Load() }

// Facets returns the facets of the latest view.
func (e *Engine) Facets() models.Facets { return e.View().Facets }

// Select replaces the filter selection. When the resolved device changes a
// snapshot fetch is started and its outcome is delivered through the returned
// Pending; otherwise Pending is nil.
func (e *Engine) Select(ctx context.Context, sel models.FilterSelection) (Pending, error) {
	return e.call(ctx, func() Pending {
		prev := e.resolvedDevice()
		e.selection = sel.Normalized()
		if e.resolvedDevice() == prev {
			e.publish()
			return nil
		}
		return e.startFetch()
	})
}

// StartRefresh issues a snapshot fetch for the current selection without
// waiting for it.
func (e *Engine) StartRefresh(ctx context.Context) (Pending, error) {
	return e.call(ctx, e.startFetch)
}

// Refresh fetches the snapshot for the current selection and waits for it to
// be applied. A result discarded as stale is not an error.
func (e *Engine) Refresh(ctx context.Context) error {
	p, err := e.StartRefresh(ctx)
	if err != nil {
		return err
	}
	if err := p.Wait(ctx); err != nil && !errors.Is(err, models.ErrStaleResult) {
		return err
	}
	return nil
}

// Ingest merges one live event at the front of the timeline. It blocks until
// the loop accepts the event so events are applied in receive order.
func (e *Engine) Ingest(raw map[string]any) {
	if !e.enqueue(context.Background(), func() { e.applyLive(raw) }) {
		e.metrics.LiveDropped.Inc()
	}
}

// SetLiveState records the live channel state in the view.
func (e *Engine) SetLiveState(state models.LiveState) {
	e.enqueue(context.Background(), func() {
		if e.liveState == state {
			return
		}
		e.liveState = state
		e.publish()
	})
}

// call runs fn on the loop and returns its Pending.
func (e *Engine) call(ctx context.Context, fn func() Pending) (Pending, error) {
	reply := make(chan Pending, 1)
	if !e.enqueue(ctx, func() { reply <- fn() }) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrEngineStopped
	}
	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stopped:
		return nil, ErrEngineStopped
	}
}

func (e *Engine) enqueue(ctx context.Context, task func()) bool {
	e.enqueueMu.RLock()
	defer e.enqueueMu.RUnlock()
	select {
	case <-e.stopped:
		return false
	default:
	}
	select {
	case e.tasks <- task:
		return true
	case <-ctx.Done():
		return false
	case <-e.stopped:
		return false
	}
}

// resolvedDevice maps the device selection to a concrete fetch target.
func (e *Engine) resolvedDevice() string {
	if d := e.selection.Device; d != "" && d != models.All {
		return d
	}
	return e.cfg.DefaultDevice
}

// startFetch runs on the loop. The pull itself happens on its own goroutine
// and re-enters the loop through applyFetch.
func (e *Engine) startFetch() Pending {
	device := e.resolvedDevice()
	result := make(chan error, 1)

	e.inFlight++
	e.metrics.FetchesInFlight.Inc()
	e.publish()

	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		started := e.clock.Now()
		snap, err := e.snapshots.Fetch(ctx, device)
		e.metrics.FetchDuration.Observe(e.clock.Now().Sub(started).Seconds())
		if !e.enqueue(context.Background(), func() { result <- e.applyFetch(device, snap, err) }) {
			e.metrics.FetchesInFlight.Dec()
			result <- ErrEngineStopped
		}
	}()
	return result
}

func (e *Engine) applyFetch(device string, snap models.Snapshot, err error) error {
	e.inFlight--
	e.metrics.FetchesInFlight.Dec()
	defer e.publish()

	if current := e.resolvedDevice(); device != current {
		e.metrics.SnapshotFetches.WithLabelValues(metrics.ResultStale).Inc()
		e.log.Debugw("snapshot_stale_discarded", "device", device, "current", current)
		return fmt.Errorf("fetch %s: %w", device, models.ErrStaleResult)
	}

	if err != nil {
		result := metrics.ResultNetwork
		if errors.Is(err, models.ErrApplicationFailure) {
			result = metrics.ResultApplication
		}
		e.metrics.SnapshotFetches.WithLabelValues(result).Inc()
		e.warning = err.Error()
		e.log.Warnw("snapshot_fetch_failed", "device", device, "err", err)
		return err
	}

	records := slices.Clone(snap.Records)
	slices.Reverse(records)
	e.store.ReplaceAll(records)
	summary := snap.Summary
	e.summary = &summary
	e.warning = ""
	e.lastUpdated = e.clock.Now().UTC()
	e.metrics.SnapshotFetches.WithLabelValues(metrics.ResultOK).Inc()
	e.log.Infow("snapshot_applied", "device", device, "records", e.store.Len())
	return nil
}

func (e *Engine) applyLive(raw map[string]any) {
	now := e.clock.Now()
	rec := timeline.Normalize(raw, e.resolvedDevice(), now)
	if rec.DeviceID == "" {
		e.metrics.LiveDropped.Inc()
		e.log.Debugw("live_event_dropped", "reason", "no device id")
		return
	}
	e.store.Prepend(rec)
	e.lastUpdated = now.UTC()
	e.metrics.LiveEvents.Inc()
	e.publish()
}

// publish snapshots the loop-owned state into a new View.
func (e *Engine) publish() {
	e.version++
	records := e.store.Snapshot()
	var summary *models.SnapshotSummary
	if e.summary != nil {
		s := *e.summary
		s.Designs = slices.Clone(s.Designs)
		summary = &s
	}
	e.view.Store(&View{
		Selection:   e.selection,
		Device:      e.resolvedDevice(),
		Records:     records,
		RecordCount: len(records),
		Capacity:    e.store.Capacity(),
		Summary:     summary,
		Facets:      timeline.ComputeFacets(records, summary),
		LiveState:   e.liveState,
		Loading:     e.inFlight > 0,
		Warning:     e.warning,
		LastUpdated: e.lastUpdated,
		Version:     e.version,
	})
	e.metrics.TimelineRecords.Set(float64(len(records)))
}

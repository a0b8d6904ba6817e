// Package live keeps the dashboard subscribed to the push channel and feeds
// every telemetry event into the engine.
package live

import (
	"context"
	"fmt"
	"sync"

	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/metrics"
	"telemetry_dashboard/internal/models"
)

// DefaultRoom is the single room the dashboard joins.
const DefaultRoom = "dashboard"

// Sink receives decoded events and connection state changes.
type Sink interface {
	Ingest(raw map[string]any)
	SetLiveState(state models.LiveState)
}

// Joiner subscribes an established connection to a room.
type Joiner interface {
	Join(room string) error
}

// Conn is a transport handle; Close tears the connection down for good.
type Conn interface {
	Close() error
}

// Handlers are the callbacks a Transport drives. OnConnect runs after every
// successful connect or reconnect.
type Handlers struct {
	OnConnect        func(j Joiner)
	OnMessage        func(payload []byte)
	OnConnectionLost func(err error)
	OnReconnecting   func()
}

// Transport opens the live channel and owns its reconnect policy.
type Transport interface {
	Dial(ctx context.Context, h Handlers) (Conn, error)
}

// Adapter tracks the channel state and re-joins the room after each
// reconnect.
type Adapter struct {
	transport Transport
	sink      Sink
	room      string
	log       *logger.Logger
	metrics   *metrics.Metrics

	mu    sync.Mutex
	state models.LiveState
	conn  Conn
}

func NewAdapter(transport Transport, sink Sink, room string, log *logger.Logger, m *metrics.Metrics) *Adapter {
	if room == "" {
		room = DefaultRoom
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Adapter{
		transport: transport,
		sink:      sink,
		room:      room,
		log:       log,
		metrics:   m,
		state:     models.LiveDisconnected,
	}
}

// Start opens the transport. Connecting, joining and reconnecting continue in
// the background until Stop.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.conn != nil {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	a.setState(models.LiveConnecting)
	conn, err := a.transport.Dial(ctx, Handlers{
		OnConnect:        a.onConnect,
		OnMessage:        a.onMessage,
		OnConnectionLost: a.onConnectionLost,
		OnReconnecting:   a.onReconnecting,
	})
	if err != nil {
		a.setState(models.LiveDisconnected)
		return fmt.Errorf("live channel: %w: %w", models.ErrChannelDisconnect, err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	return nil
}

// Stop releases the connection.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	a.setState(models.LiveDisconnected)
	return err
}

// State returns the current channel state.
func (a *Adapter) State() models.LiveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) onConnect(j Joiner) {
	if err := j.Join(a.room); err != nil {
		a.log.Warnw("live_join_failed", "room", a.room, "err", err)
		return
	}
	a.setState(models.LiveJoined)
	a.log.Infow("live_joined", "room", a.room)
}

func (a *Adapter) onMessage(payload []byte) {
	raw, ok := DecodeEvent(payload)
	if !ok {
		return
	}
	a.sink.Ingest(raw)
}

func (a *Adapter) onConnectionLost(err error) {
	a.setState(models.LiveDisconnected)
	a.log.Warnw("live_connection_lost", "err", fmt.Errorf("%w: %w", models.ErrChannelDisconnect, err))
}

func (a *Adapter) onReconnecting() {
	a.metrics.LiveReconnects.Inc()
	a.setState(models.LiveConnecting)
}

// setState forwards changes to the sink while holding mu so transitions reach
// it in order.
func (a *Adapter) setState(s models.LiveState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == s {
		return
	}
	a.state = s
	if s == models.LiveJoined {
		a.metrics.LiveJoined.Set(1)
	} else {
		a.metrics.LiveJoined.Set(0)
	}
	a.sink.SetLiveState(s)
}

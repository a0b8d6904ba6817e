package live

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"telemetry_dashboard"
	"telemetry_dashboard/internal/logger"

	"github.com/gorilla/websocket"
)

// Keepalive timing and frame limits for the client side of the channel.
const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 1 << 16 // 64 KB

	defaultReconnectMin = time.Second
	defaultReconnectMax = 30 * time.Second
)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	URL          string
	Credential   func() string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Dialer       *websocket.Dialer
}

// WebSocketTransport dials the push endpoint with gorilla/websocket and
// reconnects with capped exponential backoff.
type WebSocketTransport struct {
	url    string
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	log    *logger.Logger
}

func NewWebSocketTransport(cfg WebSocketConfig, log *logger.Logger) (*WebSocketTransport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse live url %q: %w", cfg.URL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("live url %q: unsupported scheme %q", cfg.URL, u.Scheme)
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(defaultReconnectMax, cfg.ReconnectMin)
	}
	if cfg.Credential == nil {
		cfg.Credential = func() string { return "" }
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WebSocketTransport{url: u.String(), cfg: cfg, dialer: dialer, log: log}, nil
}

// Dial starts the connect loop and returns immediately.
func (t *WebSocketTransport) Dial(ctx context.Context, h Handlers) (Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	c := &wsHandle{cancel: cancel, done: make(chan struct{})}
	go t.loop(ctx, h, c.done)
	return c, nil
}

func (t *WebSocketTransport) loop(ctx context.Context, h Handlers, done chan<- struct{}) {
	defer close(done)

	backoff := t.cfg.ReconnectMin
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if h.OnReconnecting != nil {
				h.OnReconnecting()
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			backoff = min(backoff*2, t.cfg.ReconnectMax)
		}

		header := http.Header{}
		if token := t.cfg.Credential(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		conn, _, err := t.dialer.DialContext(ctx, t.url, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warnw("live_dial_failed", "url", t.url, "attempt", attempt+1, "err", err)
			continue
		}
		backoff = t.cfg.ReconnectMin

		s := &wsSession{conn: conn}
		if h.OnConnect != nil {
			h.OnConnect(s)
		}
		err = t.serve(ctx, s, h)
		if ctx.Err() != nil {
			return
		}
		if h.OnConnectionLost != nil {
			h.OnConnectionLost(err)
		}
	}
}

// serve pumps inbound frames and pings until the connection fails or ctx ends.
func (t *WebSocketTransport) serve(ctx context.Context, s *wsSession, h Handlers) error {
	conn := s.conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			if h.OnMessage != nil {
				h.OnMessage(msg)
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
			<-readErr
			return ctx.Err()
		case err := <-readErr:
			_ = conn.Close()
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				<-readErr
				return err
			}
		}
	}
}

// wsSession is the Joiner for one established connection.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSession) Join(room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(telemetry_dashboard.LiveEnvelope{Type: "join", Room: room}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	return nil
}

type wsHandle struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the connect loop and waits for it to exit.
func (c *wsHandle) Close() error {
	c.once.Do(c.cancel)
	<-c.done
	return nil
}

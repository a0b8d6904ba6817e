package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"telemetry_dashboard"
	"telemetry_dashboard/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushServer accepts connections, checks the bearer header, waits for the
// join frame, sends one telemetry frame and then drops the connection.
type pushServer struct {
	*httptest.Server
	accepted atomic.Int32
	auth     chan string
	joins    chan telemetry_dashboard.LiveEnvelope
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{
		auth:  make(chan string, 8),
		joins: make(chan telemetry_dashboard.LiveEnvelope, 8),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case ps.auth <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := ps.accepted.Add(1)

		var join telemetry_dashboard.LiveEnvelope
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		select {
		case ps.joins <- join:
		default:
		}

		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"telemetry","data":{"deviceId":"PC-001","count":`+strconv.Itoa(int(n))+`}}`))
		// give the client a moment to read before the drop
		time.Sleep(20 * time.Millisecond)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func wsURL(httpURL string) string { return "ws" + strings.TrimPrefix(httpURL, "http") }

func TestWebSocketTransport_JoinsReceivesAndRejoins(t *testing.T) {
	t.Parallel()

	ps := newPushServer(t)
	tr, err := NewWebSocketTransport(WebSocketConfig{
		URL:          wsURL(ps.URL),
		Credential:   func() string { return "tok-abc" },
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	sink := &sinkStub{}
	a := NewAdapter(tr, sink, "", nil, nil)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop() })

	for i := 0; i < 2; i++ {
		select {
		case join := <-ps.joins:
			assert.Equal(t, "join", join.Type)
			assert.Equal(t, DefaultRoom, join.Room)
		case <-time.After(3 * time.Second):
			t.Fatalf("join %d not received", i+1)
		}
		assert.Equal(t, "Bearer tok-abc", <-ps.auth)
	}

	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events) >= 2
	}, 3*time.Second, 10*time.Millisecond)

	events, states := sink.snapshot()
	assert.Equal(t, "PC-001", events[0]["deviceId"])
	assert.Contains(t, states, models.LiveDisconnected)
}

func TestWebSocketTransport_StopEndsLoop(t *testing.T) {
	t.Parallel()

	ps := newPushServer(t)
	tr, err := NewWebSocketTransport(WebSocketConfig{URL: ps.URL, ReconnectMin: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	conn, err := tr.Dial(context.Background(), Handlers{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = conn.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Close did not stop the connect loop")
	}
	assert.NoError(t, conn.Close(), "Close is idempotent")
}

func TestNewWebSocketTransport_URLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "ws://collector:9000/live", want: "ws://collector:9000/live", ok: true},
		{in: "https://collector/live", want: "wss://collector/live", ok: true},
		{in: "http://collector/live", want: "ws://collector/live", ok: true},
		{in: "tcp://collector:1883"},
	}
	for _, tc := range tests {
		tr, err := NewWebSocketTransport(WebSocketConfig{URL: tc.in}, nil)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, tr.url)
	}
}

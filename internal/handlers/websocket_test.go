package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// --- parseInterval unit tests ---

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil)

	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"default_when_missing", "/ws", 1 * time.Second},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 1 * time.Second},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 1 * time.Second},
		{"interval_invalid_string", "/ws?interval=bogus", 1 * time.Second},
		{"interval_ms_invalid", "/ws?interval_ms=NaN", 1 * time.Second},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"both_present_invalid_interval_ms_used", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			c, _ := gin.CreateTestContext(w)
			c.Request = req
			got := h.parseInterval(c)
			if got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

// --- websocket integration tests ---

type wsTestEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Device    string                   `json:"device"`
		LiveState models.LiveState         `json:"liveState"`
		Version   uint64                   `json:"version"`
		Records   []models.TelemetryRecord `json:"records"`
	} `json:"data"`
}

func dialViewStream(t *testing.T, s *service.Service, intervalMS string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, nil)
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	q := u.Query()
	q.Set("interval_ms", intervalMS)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocket_StateStream_InitialAndOnChange(t *testing.T) {
	dash := &mockDashboard{}
	dash.setView(service.View{
		Device:    "PC-001",
		LiveState: models.LiveJoined,
		Records:   []models.TelemetryRecord{{DeviceID: "PC-001", Status: models.StatusOn}},
	})
	conn := dialViewStream(t, &service.Service{Dashboard: dash}, "20")

	// Read initial state
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env wsTestEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "state" || env.Data.Device != "PC-001" || env.Data.LiveState != models.LiveJoined {
		t.Fatalf("bad envelope: %+v", env)
	}
	if len(env.Data.Records) != 1 || env.Data.Records[0].DeviceID != "PC-001" {
		t.Fatalf("unexpected records: %+v", env.Data.Records)
	}
	first := env.Data.Version

	// A new version is pushed on a later tick.
	dash.setView(service.View{Device: "PC-002", LiveState: models.LiveConnecting})
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	env = wsTestEnvelope{}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if env.Type != "state" || env.Data.Device != "PC-002" || env.Data.Version <= first {
		t.Fatalf("expected newer state, got %+v", env)
	}
}

func TestWebSocket_UnchangedViewIsNotResent(t *testing.T) {
	dash := &mockDashboard{}
	dash.setView(service.View{Device: "PC-001"})
	conn := dialViewStream(t, &service.Service{Dashboard: dash}, "10")

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env wsTestEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}

	// Several ticks pass with the same version; nothing else arrives.
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err == nil {
		t.Fatalf("expected no frame for an unchanged view, got %s", string(raw))
	}
}

func TestWebSocket_RequiresTokenWhenEnabled(t *testing.T) {
	dash := &mockDashboard{}
	dash.setView(service.View{Device: "PC-001"})
	srv := httptest.NewServer(newTestRouter(&service.Service{
		Dashboard:     dash,
		Authorization: &mockAuth{enabled: true, subject: "ui"},
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}

	conn, resp, err := dialer.Dial(u.String(), nil)
	if err == nil {
		_ = conn.Close()
		t.Fatalf("expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got resp=%v err=%v", resp, err)
	}

	conn, _, err = dialer.Dial(u.String(), authHeader("valid"))
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env wsTestEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "state" || env.Data.Device != "PC-001" {
		t.Fatalf("bad envelope: %+v", env)
	}
}

package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	enabled  bool
	subject  string
	parseErr error

	lastParseToken string
}

func (m *mockAuth) Enabled() bool { return m.enabled }
func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.subject, m.parseErr
}

type mockDashboard struct {
	mu   sync.Mutex
	view service.View

	// afterView runs after each View load, outside the lock.
	afterView func(m *mockDashboard)

	pending    service.Pending
	selectErr  error
	refreshErr error

	lastSelection models.FilterSelection
	refreshCalls  int
}

func (m *mockDashboard) View() *service.View {
	m.mu.Lock()
	v := m.view
	hook := m.afterView
	m.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	return &v
}
func (m *mockDashboard) Facets() models.Facets { return m.View().Facets }
func (m *mockDashboard) Select(ctx context.Context, sel models.FilterSelection) (service.Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSelection = sel
	return m.pending, m.selectErr
}
func (m *mockDashboard) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	return m.refreshErr
}

// setView replaces the view and bumps its version.
func (m *mockDashboard) setView(v service.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.Version = m.view.Version + 1
	m.view = v
}

type mockSubmitter struct {
	err  error
	last models.Submission
}

func (m *mockSubmitter) Submit(ctx context.Context, s models.Submission) error {
	m.last = s
	return m.err
}

type mockAutoRefresh struct {
	settings service.RefreshSettings
	err      error
}

func (m *mockAutoRefresh) Configure(enabled bool, interval time.Duration) error {
	if m.err != nil {
		return m.err
	}
	if interval == 0 {
		interval = m.settings.Interval
	}
	m.settings = service.RefreshSettings{Enabled: enabled, Interval: interval, Seconds: int(interval / time.Second)}
	return nil
}
func (m *mockAutoRefresh) Settings() service.RefreshSettings { return m.settings }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

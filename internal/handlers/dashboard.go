package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"telemetry_dashboard/internal/models"
	"telemetry_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusSubmitted = "submitted"

	errRefreshFailed   = "snapshot refresh failed"
	errSelectionFailed = "failed to apply selection"
	errSubmitFailed    = "failed to submit telemetry"
	errEncodeFailed    = "failed to encode timeline"
	errInvalidBodyPref = "invalid body: "
	errFromInvalid     = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid       = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errFromAfterTo     = "'from' must be <= 'to'"
	mimeMsgpack        = "application/msgpack"
	queryWait          = "wait"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// stateResponse is the body of GET /api/v1/state.
type stateResponse struct {
	*service.View
	FilteredCount int `json:"filteredCount"`
}

func newStateResponse(v *service.View) stateResponse {
	return stateResponse{View: v, FilteredCount: len(v.Filtered())}
}

// timelineResponse is the body of GET /api/v1/timeline.
type timelineResponse struct {
	Selection   models.FilterSelection   `json:"selection"`
	Count       int                      `json:"count"`
	Records     []models.TelemetryRecord `json:"records"`
	LastUpdated time.Time                `json:"lastUpdated"`
}

// AutoRefreshRequest is the body of PUT /api/v1/auto-refresh.
type AutoRefreshRequest struct {
	Enabled bool `json:"enabled"`
	// Refresh period in seconds. Allowed: 10, 30, 60, 300. Zero keeps the current one.
	IntervalSeconds int `json:"intervalSeconds" example:"30"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Dashboard state
// @Description  Selection, summary, facets, live channel state, loading flag and last warning.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  stateResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, newStateResponse(h.services.View()))
}

// @Summary      Filtered timeline
// @Description  Records passing the current selection, newest first. Optional window bounds use RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' is inclusive to end of day.
// @Tags         dashboard
// @Produce      json
// @Param        from  query  string  false  "Window start"  example(2025-08-01)
// @Param        to    query  string  false  "Window end"    example(2025-08-31)
// @Success      200   {object}  timelineResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/timeline [get]
// @Security     BearerAuth
func (h *Handler) getTimeline(c *gin.Context) {
	v := h.services.View()
	records, ok := windowedTimeline(c, v)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, timelineResponse{
		Selection:   v.Selection,
		Count:       len(records),
		Records:     records,
		LastUpdated: v.LastUpdated,
	})
}

// @Summary      Filtered timeline (msgpack)
// @Description  Same records as /api/v1/timeline encoded as a MessagePack array.
// @Tags         dashboard
// @Produce      application/msgpack
// @Param        from  query  string  false  "Window start"
// @Param        to    query  string  false  "Window end"
// @Success      200
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/timeline/msgpack [get]
// @Security     BearerAuth
func (h *Handler) getTimelineMsgpack(c *gin.Context) {
	records, ok := windowedTimeline(c, h.services.View())
	if !ok {
		return
	}
	b, err := msgpack.Marshal(records)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errEncodeFailed, "timeline_msgpack_failed", err)
		return
	}
	c.Data(http.StatusOK, mimeMsgpack, b)
}

// windowedTimeline filters v by its selection and then by the optional
// from/to window. It writes a 400 and returns false on a malformed window.
func windowedTimeline(c *gin.Context, v *service.View) ([]models.TelemetryRecord, bool) {
	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	records := v.Filtered()
	if from.IsZero() && to.IsZero() {
		return records, true
	}
	out := make([]models.TelemetryRecord, 0, len(records))
	for _, r := range records {
		if !from.IsZero() && r.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, true
}

// @Summary      Facets
// @Description  Distinct devices, shifts, designs and statuses in order of first appearance.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  models.Facets
// @Router       /api/v1/facets [get]
// @Security     BearerAuth
func (h *Handler) getFacets(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Facets())
}

// @Summary      Snapshot summary
// @Description  Aggregates of the last applied snapshot; null while none has loaded.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "loading, summary"
// @Router       /api/v1/summary [get]
// @Security     BearerAuth
func (h *Handler) getSummary(c *gin.Context) {
	v := h.services.View()
	c.JSON(http.StatusOK, gin.H{
		"loading": v.Loading,
		"device":  v.Device,
		"summary": v.Summary,
	})
}

// @Summary      Change selection
// @Description  Replaces the filter selection. A device change starts a snapshot fetch; pass wait=true to block until it resolves.
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        body  body   models.FilterSelection  true  "Selection, empty fields mean ALL"
// @Param        wait  query  bool                    false "Wait for the triggered fetch"
// @Success      200   {object}  stateResponse
// @Success      202   {object}  stateResponse
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/selection [put]
// @Security     BearerAuth
func (h *Handler) putSelection(c *gin.Context) {
	var sel models.FilterSelection
	if err := c.ShouldBindJSON(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	ctx := c.Request.Context()
	pending, err := h.services.Select(ctx, sel)
	if err != nil {
		h.logAndJSONError(c, http.StatusServiceUnavailable, errSelectionFailed, "selection_failed", err)
		return
	}

	code := http.StatusOK
	if pending != nil {
		code = http.StatusAccepted
		if c.Query(queryWait) == "true" {
			err := pending.Wait(ctx)
			switch {
			case err == nil, errors.Is(err, models.ErrStaleResult):
				code = http.StatusOK
			default:
				h.logAndJSONError(c, http.StatusBadGateway, errRefreshFailed, "selection_fetch_failed", err, "device", sel.Device)
				return
			}
		}
	}
	c.JSON(code, newStateResponse(h.services.View()))
}

// @Summary      Manual refresh
// @Description  Fetches the snapshot for the current selection and waits for it to be applied.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  stateResponse
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/refresh [post]
// @Security     BearerAuth
func (h *Handler) postRefresh(c *gin.Context) {
	if err := h.services.Refresh(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errRefreshFailed, "refresh_failed", err)
		return
	}
	c.JSON(http.StatusOK, newStateResponse(h.services.View()))
}

// @Summary      Auto-refresh settings
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  service.RefreshSettings
// @Router       /api/v1/auto-refresh [get]
// @Security     BearerAuth
func (h *Handler) getAutoRefresh(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Settings())
}

// @Summary      Configure auto-refresh
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        body  body  AutoRefreshRequest  true  "Enable flag and interval"
// @Success      200   {object}  service.RefreshSettings
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/auto-refresh [put]
// @Security     BearerAuth
func (h *Handler) putAutoRefresh(c *gin.Context) {
	var req AutoRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	interval := time.Duration(req.IntervalSeconds) * time.Second
	if err := h.services.Configure(req.Enabled, interval); err != nil {
		if errors.Is(err, service.ErrInvalidInterval) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to configure auto-refresh", "auto_refresh_failed", err)
		return
	}
	c.JSON(http.StatusOK, h.services.Settings())
}

// @Summary      Submit telemetry
// @Description  Forwards one observation to the collector. The dashboard timeline is not modified.
// @Tags         telemetry
// @Accept       json
// @Produce      json
// @Param        body  body  models.Submission  true  "Observation"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/events [post]
// @Security     BearerAuth
func (h *Handler) postEvent(c *gin.Context) {
	var sub models.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Submit(c.Request.Context(), sub); err != nil {
		if errors.Is(err, service.ErrInvalidSubmission) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusBadGateway, errSubmitFailed, "submit_failed", err, "device", sub.DeviceID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSubmitted})
}

// parseWindow parses the optional from/to bounds. If 'to' has no time
// component it is treated as the end of that day.
func parseWindow(fromQS, toQS string) (from, to time.Time, err error) {
	if fromQS != "" {
		if from, err = parseQueryTime(fromQS); err != nil {
			return time.Time{}, time.Time{}, errors.New(errFromInvalid)
		}
	}
	if toQS != "" {
		if to, err = parseQueryTime(toQS); err != nil {
			return time.Time{}, time.Time{}, errors.New(errToInvalid)
		}
		if isDateOnly(toQS) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, errors.New(errFromAfterTo)
	}
	return from, to, nil
}

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

func parseQueryTime(s string) (time.Time, error) {
	// Try multiple accepted formats, normalizing to UTC.
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}

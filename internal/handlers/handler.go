package handlers

import (
	"net/http"

	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// WithMetrics exposes h on GET /metrics.
func (h *Handler) WithMetrics(metrics http.Handler) *Handler {
	h.metrics = metrics
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	// Versioned API endpoints (protected when a signing key is configured)
	h.registerAPIRoutes(router)

	// View stream (HTTP upgrade) on the same port, behind the same bearer check
	router.GET("/ws", h.bearerMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.bearerMiddleware)
	{
		h.registerViewRoutes(api)
		h.registerControlRoutes(api)
	}
}

func (h *Handler) registerViewRoutes(api *gin.RouterGroup) {
	api.GET("/state", h.getState)
	api.GET("/timeline", h.getTimeline)
	api.GET("/timeline/msgpack", h.getTimelineMsgpack)
	api.GET("/facets", h.getFacets)
	api.GET("/summary", h.getSummary)
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	// Body example: {"device":"PC-002","shift":"ALL","design":"ALL","status":"ON"}
	api.PUT("/selection", h.putSelection)
	api.POST("/refresh", h.postRefresh)
	api.GET("/auto-refresh", h.getAutoRefresh)
	// Body example: {"enabled":true,"intervalSeconds":30}
	api.PUT("/auto-refresh", h.putAutoRefresh)
	api.POST("/events", h.postEvent)
}

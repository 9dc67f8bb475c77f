package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
	"github.com/JasonCorp84/rate-limiter/internal/middleware"
)

// Handlers contém os handlers da API
type Handlers struct {
	service   domain.AdmissionService
	store     domain.Store
	logger    domain.Logger
	startTime time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(service domain.AdmissionService, store domain.Store, logger domain.Logger) *Handlers {
	return &Handlers{
		service:   service,
		store:     store,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SetupRoutes configura as rotas da API
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	rateLimiterMiddleware := middleware.NewRateLimiterMiddleware(h.service, h.logger)

	// Rotas públicas (sem rate limiting)
	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", h.MetricsHandler)

	// Rotas protegidas por rate limiting
	protected := router.Group("/test")
	protected.Use(rateLimiterMiddleware)
	{
		protected.GET("/:applicationId", h.TestHandler)
	}
}

// HealthHandler implementa health check com probe do storage
func (h *Handlers) HealthHandler(c *gin.Context) {
	response := gin.H{
		"status":    "healthy",
		"service":   "Rate Limiter API",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Health check failed", err, nil)
		response["status"] = "unhealthy"
		response["store"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response["store"] = "ok"
	c.JSON(http.StatusOK, response)
}

// TestHandler implementa o endpoint de exemplo protegido por rate limiting
func (h *Handlers) TestHandler(c *gin.Context) {
	applicationID := domain.NormalizeIdentifier(c.Param("applicationId"))

	h.logger.Debug("Test endpoint accessed", map[string]interface{}{
		"application_id": applicationID,
		"client_ip":      middleware.GetClientIP(c),
	})

	c.JSON(http.StatusOK, gin.H{
		"message":        "request admitted",
		"application_id": applicationID,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// MetricsHandler implementa endpoint de métricas do sistema
func (h *Handlers) MetricsHandler(c *gin.Context) {
	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"service":        "Rate Limiter API",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"system": gin.H{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": m.Alloc,
			"gc_runs":      m.NumGC,
		},
	})
}

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
	"github.com/JasonCorp84/rate-limiter/internal/logger"
)

// Corpos e headers fixos do contrato HTTP
const (
	bodyTooManyRequests    = "Too Many Requests"
	bodyConfigMissing      = "Rate limit config not found."
	bodyConfigUnavailable  = "Service Unavailable: Rate limiter config error."
	bodyBackendUnavailable = "Service Unavailable: Rate limiter backend error."

	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"

	unavailableRetryAfterSec = 10
)

// RateLimiterMiddleware implementa o middleware de admissão
type RateLimiterMiddleware struct {
	service domain.AdmissionService
	logger  domain.Logger
}

// NewRateLimiterMiddleware cria uma nova instância do middleware
func NewRateLimiterMiddleware(service domain.AdmissionService, log domain.Logger) gin.HandlerFunc {
	middleware := &RateLimiterMiddleware{
		service: service,
		logger:  log,
	}

	return middleware.Handle
}

// Handle é o handler principal do middleware: deriva a chave de cliente,
// delega a decisão ao service e mapeia o resultado para o contrato HTTP
func (m *RateLimiterMiddleware) Handle(c *gin.Context) {
	requestID := m.getRequestID(c)
	clientIP := m.extractClientIP(c)
	applicationID := c.Param("applicationId")

	ctx := logger.ContextWithRequestInfo(c.Request.Context(), requestID, clientIP,
		domain.NormalizeIdentifier(applicationID))
	log := m.logger.WithContext(ctx)

	decision, err := m.service.CheckLimit(ctx, clientIP, applicationID)
	if err != nil {
		m.handleError(c, log, err)
		return
	}

	// os quatro headers são emitidos tanto na admissão quanto na rejeição
	c.Header(headerLimit, strconv.Itoa(decision.Limit))
	c.Header(headerRemaining, strconv.Itoa(decision.Remaining))
	c.Header(headerReset, strconv.FormatInt(decision.ResetAt, 10))
	c.Header(headerRetryAfter, strconv.Itoa(decision.RetryAfterSec))

	if !decision.Allowed {
		c.String(http.StatusTooManyRequests, bodyTooManyRequests)
		c.Abort()
		return
	}

	c.Next()
}

// handleError mapeia a taxonomia de erros do core para status e corpos HTTP.
// Nenhum header de rate limit é emitido nos caminhos de erro; nos 503 apenas
// Retry-After
func (m *RateLimiterMiddleware) handleError(c *gin.Context, log domain.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrConfigMissing):
		log.Error("Rate limit config missing", err, nil)
		c.String(http.StatusInternalServerError, bodyConfigMissing)

	case errors.Is(err, domain.ErrConfigMalformed),
		errors.Is(err, domain.ErrConfigInvalid),
		errors.Is(err, domain.ErrConfigStore):
		log.Error("Rate limiter config unavailable", err, nil)
		c.Header(headerRetryAfter, strconv.Itoa(unavailableRetryAfterSec))
		c.String(http.StatusServiceUnavailable, bodyConfigUnavailable)

	default:
		log.Error("Rate limiter backend unavailable", err, nil)
		c.Header(headerRetryAfter, strconv.Itoa(unavailableRetryAfterSec))
		c.String(http.StatusServiceUnavailable, bodyBackendUnavailable)
	}

	c.Abort()
}

// extractClientIP extrai o IP do cliente considerando proxies e load balancers
func (m *RateLimiterMiddleware) extractClientIP(c *gin.Context) string {
	// Prioridade: X-Forwarded-For > X-Real-IP > RemoteAddr

	// X-Forwarded-For pode conter múltiplos IPs separados por vírgula
	// O primeiro é o IP original do cliente
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	// X-Real-IP é usado por alguns proxies
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback para RemoteAddr (remove porta se presente)
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	return c.Request.RemoteAddr
}

// getRequestID obtém ou gera um Request ID para tracking
func (m *RateLimiterMiddleware) getRequestID(c *gin.Context) string {
	if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
		return requestID
	}

	requestID := uuid.New().String()
	c.Header("X-Request-ID", requestID)
	return requestID
}

// GetClientIP é uma função utilitária exportada para uso externo
func GetClientIP(c *gin.Context) string {
	middleware := &RateLimiterMiddleware{}
	return middleware.extractClientIP(c)
}

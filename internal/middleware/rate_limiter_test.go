package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
	"github.com/JasonCorp84/rate-limiter/internal/logger"
)

// MockAdmissionService é um mock do AdmissionService para testes
type MockAdmissionService struct {
	mock.Mock
}

func (m *MockAdmissionService) CheckLimit(ctx context.Context, remoteAddr, identifier string) (*domain.Decision, error) {
	args := m.Called(ctx, remoteAddr, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Decision), args.Error(1)
}

// setupTestRouter cria um router Gin de teste com o middleware instalado
func setupTestRouter(service domain.AdmissionService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/test/:applicationId", NewRateLimiterMiddleware(service, logger.New("error", "json")), func(c *gin.Context) {
		c.String(http.StatusOK, "downstream")
	})
	return router
}

func performRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_AdmittedRequest(t *testing.T) {
	service := new(MockAdmissionService)
	service.On("CheckLimit", mock.Anything, mock.Anything, "app1").Return(&domain.Decision{
		Allowed:       true,
		RuleIndex:     0,
		Limit:         5,
		Remaining:     3,
		ResetAt:       1715342400000,
		RetryAfterSec: 60,
	}, nil)

	w := performRequest(setupTestRouter(service), "/test/app1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "downstream", w.Body.String())
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1715342400000", w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestMiddleware_BlockedRequest(t *testing.T) {
	service := new(MockAdmissionService)
	service.On("CheckLimit", mock.Anything, mock.Anything, "app1").Return(&domain.Decision{
		Allowed:       false,
		RuleIndex:     0,
		Limit:         2,
		Remaining:     0,
		ResetAt:       1715342406000,
		RetryAfterSec: 6,
	}, nil)

	w := performRequest(setupTestRouter(service), "/test/app1")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too Many Requests", w.Body.String())
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "6", w.Header().Get("Retry-After"))
}

func TestMiddleware_ConfigMissing(t *testing.T) {
	service := new(MockAdmissionService)
	service.On("CheckLimit", mock.Anything, mock.Anything, "nobody").Return(nil, domain.ErrConfigMissing)

	w := performRequest(setupTestRouter(service), "/test/nobody")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Rate limit config not found.", w.Body.String())
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestMiddleware_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "malformed config", err: domain.ErrConfigMalformed},
		{name: "invalid config", err: domain.ErrConfigInvalid},
		{name: "store failure during resolution", err: domain.ErrConfigStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockAdmissionService)
			service.On("CheckLimit", mock.Anything, mock.Anything, "app1").Return(nil, tt.err)

			w := performRequest(setupTestRouter(service), "/test/app1")

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "Service Unavailable: Rate limiter config error.", w.Body.String())
			assert.Equal(t, "10", w.Header().Get("Retry-After"))
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
			assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))
			assert.Empty(t, w.Header().Get("X-RateLimit-Reset"))
		})
	}
}

func TestMiddleware_BackendError(t *testing.T) {
	service := new(MockAdmissionService)
	service.On("CheckLimit", mock.Anything, mock.Anything, "app1").Return(nil, domain.ErrStore)

	w := performRequest(setupTestRouter(service), "/test/app1")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Service Unavailable: Rate limiter backend error.", w.Body.String())
	assert.Equal(t, "10", w.Header().Get("Retry-After"))
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	service := new(MockAdmissionService)
	service.On("CheckLimit", mock.Anything, mock.Anything, mock.Anything).Return(&domain.Decision{
		Allowed: true, Limit: 1, Remaining: 0, RetryAfterSec: 1,
	}, nil)

	w := performRequest(setupTestRouter(service), "/test/app1")

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "uses first X-Forwarded-For entry",
			remoteAddr: "127.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "10.1.1.1, 10.2.2.2"},
			expected:   "10.1.1.1",
		},
		{
			name:       "falls back to X-Real-IP",
			remoteAddr: "127.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "10.3.3.3"},
			expected:   "10.3.3.3",
		},
		{
			name:       "falls back to RemoteAddr without port",
			remoteAddr: "192.0.2.7:5678",
			expected:   "192.0.2.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/test/app1", nil)
			c.Request.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, GetClientIP(c))
		})
	}
}

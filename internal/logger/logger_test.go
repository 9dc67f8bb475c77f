package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		format   string
		expected logrus.Level
	}{
		{
			name:     "Debug level JSON format",
			level:    "debug",
			format:   "json",
			expected: logrus.DebugLevel,
		},
		{
			name:     "Info level text format",
			level:    "info",
			format:   "text",
			expected: logrus.InfoLevel,
		},
		{
			name:     "Invalid level defaults to info",
			level:    "invalid",
			format:   "json",
			expected: logrus.InfoLevel,
		},
		{
			name:     "Error level",
			level:    "error",
			format:   "json",
			expected: logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.format)
			structLogger, ok := log.(*StructuredLogger)
			require.True(t, ok)
			assert.Equal(t, tt.expected, structLogger.logger.GetLevel())
		})
	}
}

func newBufferedLogger(buf *bytes.Buffer) *StructuredLogger {
	return &StructuredLogger{
		logger: &logrus.Logger{
			Out:       buf,
			Formatter: &logrus.JSONFormatter{},
			Level:     logrus.DebugLevel,
		},
		fields: make(logrus.Fields),
	}
}

func TestStructuredLogger_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	tests := []struct {
		name     string
		logFunc  func()
		expected string
	}{
		{
			name: "Debug log",
			logFunc: func() {
				structLogger.Debug("Debug message", map[string]interface{}{"key": "value"})
			},
			expected: "debug",
		},
		{
			name: "Info log",
			logFunc: func() {
				structLogger.Info("Info message", map[string]interface{}{"key": "value"})
			},
			expected: "info",
		},
		{
			name: "Warn log",
			logFunc: func() {
				structLogger.Warn("Warn message", map[string]interface{}{"key": "value"})
			},
			expected: "warning",
		},
		{
			name: "Error log",
			logFunc: func() {
				structLogger.Error("Error message", errors.New("test error"), map[string]interface{}{"key": "value"})
			},
			expected: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			output := buf.String()
			assert.Contains(t, output, tt.expected)
			assert.Contains(t, output, "component")
			assert.Contains(t, output, "rate_limiter")
		})
	}
}

func TestStructuredLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	ctx := ContextWithRequestInfo(context.Background(), "req-123", "192.168.1.1", "app1")

	contextLogger := structLogger.WithContext(ctx)
	contextLogger.Info("Test message with context", nil)

	output := buf.String()
	assert.Contains(t, output, "req-123")
	assert.Contains(t, output, "192.168.1.1")
	assert.Contains(t, output, "app1")
}

func TestStructuredLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	structLogger := newBufferedLogger(&buf)

	structLogger.Info("Test JSON format", map[string]interface{}{
		"test_field": "test_value",
		"number":     123,
	})

	var logEntry map[string]interface{}
	err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry)
	require.NoError(t, err)

	assert.Contains(t, logEntry, "msg")
	assert.Contains(t, logEntry, "level")
	assert.Contains(t, logEntry, "component")
	assert.Equal(t, "rate_limiter", logEntry["component"])
	assert.Equal(t, "test_value", logEntry["test_field"])
	assert.Equal(t, float64(123), logEntry["number"])
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "Nil context",
			ctx:      nil,
			expected: "",
		},
		{
			name:     "Context without request ID",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "Context with request ID",
			ctx:      context.WithValue(context.Background(), RequestIDKey, "req-789"),
			expected: "req-789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetRequestID(tt.ctx))
		})
	}
}

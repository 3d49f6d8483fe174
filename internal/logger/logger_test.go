package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	// Test with debug true
	logger := New(true)
	if logger == nil {
		t.Fatal("Expected logger to not be nil")
	}

	// Test with debug false
	logger = New(false)
	if logger == nil {
		t.Fatal("Expected logger to not be nil")
	}
}

func TestNew_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)
	logger.Debug("test debug message")

	if !strings.Contains(buf.String(), "test debug message") {
		t.Errorf("Expected log output to contain 'test debug message', but it didn't")
	}
}

func TestNew_Info_With_Debug_False(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)
	logger.Debug("test debug message")
	logger.Info("test info message")

	if strings.Contains(buf.String(), "test debug message") {
		t.Errorf("Expected log output to not contain 'test debug message', but it did")
	}
	if !strings.Contains(buf.String(), "test info message") {
		t.Errorf("Expected log output to contain 'test info message', but it didn't")
	}
}

func TestFromContext(t *testing.T) {
	fallback := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	scoped := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.Same(t, scoped, FromContext(WithContext(context.Background(), scoped), fallback))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("generates request id", func(t *testing.T) {
		var buf bytes.Buffer
		router := gin.New()
		router.Use(Middleware(NewWithWriter(&buf, false)))
		router.GET("/ping", func(c *gin.Context) {
			FromContext(c.Request.Context(), nil).Info("inside handler")
			c.Status(http.StatusNoContent)
		})

		req, _ := http.NewRequest(http.MethodGet, "/ping?x=1", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		id := rr.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Contains(t, buf.String(), "inside handler")
		assert.Contains(t, buf.String(), `"path":"/ping?x=1"`)
		assert.Contains(t, buf.String(), `"status":204`)
		assert.Equal(t, 2, strings.Count(buf.String(), id))
	})

	t.Run("keeps caller request id", func(t *testing.T) {
		var buf bytes.Buffer
		router := gin.New()
		router.Use(Middleware(NewWithWriter(&buf, false)))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "caller-id")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, "caller-id", rr.Header().Get(RequestIDHeader))
		assert.Contains(t, buf.String(), `"request_id":"caller-id"`)
	})
}

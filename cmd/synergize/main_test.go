package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"synergize/internal/config"
	"synergize/internal/db"
	"synergize/internal/github"
	"synergize/internal/model"
	"synergize/internal/summarizer"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomRecovery_Panic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logBuf bytes.Buffer
	testLogger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	router := gin.New()
	router.Use(customRecovery(testLogger))
	router.GET("/", func(c *gin.Context) {
		panic("test panic")
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"internal_error"`)
	assert.Contains(t, logBuf.String(), "Panic recovered")
	assert.Contains(t, logBuf.String(), "test panic")
}

func TestCustomRecovery_AbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logBuf bytes.Buffer
	testLogger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	router := gin.New()
	router.Use(customRecovery(testLogger))
	router.GET("/", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// The status code is not set when aborting, so we check the log
	assert.Contains(t, logBuf.String(), "Client connection aborted")
	assert.NotContains(t, logBuf.String(), "Panic recovered")
}

func loadTestConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0644))
	cfg, _, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	return cfg
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logBuf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logBuf, nil))
	router := newRouter(&config.Config{}, log, nil, summarizer.NewPipeline(github.NewClient("", "", ""), nil, log))

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "health-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "health-1", rr.Header().Get("X-Request-ID"))
	assert.Contains(t, logBuf.String(), "health-1")
}

// TestKeyLifecycleE2E creates a key through the management routes, validates
// it and summarizes a repository that has no README.
func TestKeyLifecycleE2E(t *testing.T) {
	readmeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/widgets/readme" {
			content := base64.StdEncoding.EncodeToString([]byte("# Widgets"))
			fmt.Fprintf(w, `{"content":%q,"path":"README.md","size":9}`, content)
			return
		}
		http.NotFound(w, r)
	}))
	defer readmeServer.Close()

	cfg := loadTestConfig(t, fmt.Sprintf(`
port: 8081
database:
  type: "sqlite"
  dsn: "file:lifecycle_e2e?mode=memory&cache=shared"
admin:
  password: "e2e-test-password"
github:
  api_url: %q
`, readmeServer.URL))

	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	dbService, err := db.NewService(cfg.Database)
	require.NoError(t, err)
	pipeline := summarizer.NewPipeline(github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.UserAgent, ""), nil, log)
	router := newRouter(cfg, log, dbService, pipeline)

	// 1. Management routes need admin credentials.
	req, _ := http.NewRequest(http.MethodGet, "/keys", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// 2. Create a key.
	req, _ = http.NewRequest(http.MethodPost, "/keys", bytes.NewBufferString(`{"label":"e2e"}`))
	req.SetBasicAuth("admin", "e2e-test-password")
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	var created model.APIKey
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))

	// 3. Validate it without credentials.
	req, _ = http.NewRequest(http.MethodPost, "/keys/validate", bytes.NewBufferString(fmt.Sprintf(`{"apiKey":%q}`, created.Key)))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"valid"`)

	// 4. A repository without a README gets a basic summary without any model.
	req, _ = http.NewRequest(http.MethodGet, "/keys/validate-and-summarize?gitUrl=https://github.com/acme/empty", nil)
	req.Header.Set("x-api-key", created.Key)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Status      string             `json:"status"`
		AIAvailable bool               `json:"ai_available"`
		Summary     summarizer.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.False(t, body.AIAvailable)
	assert.Equal(t, summarizer.StatusBasic, body.Summary.Status)
	assert.False(t, body.Summary.ReadmeInfo.Found)

	// 5. A repository with a README needs a model.
	req, _ = http.NewRequest(http.MethodGet, "/keys/validate-and-summarize?gitUrl=https://github.com/acme/widgets", nil)
	req.Header.Set("x-api-key", created.Key)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"summarizer_unconfigured"`)

	// Only the successful summary was counted.
	stored, err := dbService.FindAPIKeyByKey(context.Background(), created.Key)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Usage)
}

func TestGracefulShutdown(t *testing.T) {
	cfg := loadTestConfig(t, `
port: 8088
debug: false
database:
  type: "sqlite"
  dsn: "file:graceful_shutdown?mode=memory&cache=shared"
admin:
  password: "shutdown-test"
`)
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	serverExited := make(chan error, 1)
	go func() {
		serverExited <- setupAndRunServer(ctx, cfg, log)
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)
	resp, err := http.Get("http://localhost:8088/healthz")
	if assert.NoError(t, err) {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	cancel()

	select {
	case err := <-serverExited:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second): // 5s timeout in runServer + 1s buffer
		t.Fatal("server did not shut down gracefully within the timeout")
	}
}

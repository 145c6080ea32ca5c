package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/account-notifier/pkg/ratelimit"
	"github.com/telekom/account-notifier/pkg/system"
)

type pingController struct {
	base string
}

func (p pingController) BasePath() string { return p.base }

func (p pingController) Handlers() []gin.HandlerFunc { return nil }

func (p pingController) Register(rg *gin.RouterGroup) error {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return nil
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg.Debug = true
	s, err := NewServer(zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.168.1.1:12345"
	h.ServeHTTP(w, req)
	return w
}

func TestServerRegistration(t *testing.T) {
	s := newTestServer(t, ServerConfig{Name: "test"})
	require.NoError(t, s.RegisterAll([]APIController{pingController{base: "users"}}))
	require.NoError(t, s.RegisterRoot([]APIController{pingController{base: "fallback"}}))

	w := get(s.Handler(), "/api/users/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(system.RequestIDHeader))

	assert.Equal(t, http.StatusOK, get(s.Handler(), "/fallback/ping").Code)
	assert.Equal(t, http.StatusNotFound, get(s.Handler(), "/api/fallback/ping").Code)
}

func TestServerExposesMetrics(t *testing.T) {
	s := newTestServer(t, ServerConfig{Name: "test"})
	w := get(s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "notifier_")
}

func TestServerRateLimitsAPIRoutesOnly(t *testing.T) {
	s := newTestServer(t, ServerConfig{
		Name:      "test",
		RateLimit: &ratelimit.Config{Rate: 1, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour},
	})
	require.NoError(t, s.RegisterAll([]APIController{pingController{base: "users"}}))

	assert.Equal(t, http.StatusOK, get(s.Handler(), "/api/users/ping").Code)
	assert.Equal(t, http.StatusOK, get(s.Handler(), "/api/users/ping").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(s.Handler(), "/api/users/ping").Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(s.Handler(), "/metrics").Code)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, ServerConfig{Name: "test", Address: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerRunReportsListenErrors(t *testing.T) {
	s := newTestServer(t, ServerConfig{Name: "test", Address: "not-an-address"})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test server failed")
}

func TestNewServerRejectsBadTrustedProxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, err := NewServer(zaptest.NewLogger(t), ServerConfig{Name: "test", TrustedProxies: []string{"not-a-cidr"}, Debug: true})
	assert.Error(t, err)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"global-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeLimiter struct {
	mu    sync.Mutex
	hits  map[string]int
	err   error
	calls int
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.hits == nil {
		f.hits = make(map[string]int)
	}
	count := f.hits[key]
	f.hits[key]++
	return count < limit, nil
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handlers := append(mw, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.GET("/chat", handlers...)
	engine.OPTIONS("/chat", handlers...)
	return engine
}

func do(engine *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRateLimitIP(t *testing.T) {
	limiter := &fakeLimiter{}
	rl := NewRateLimitMiddleware(limiter, logger.Discard())
	engine := newEngine(rl.RateLimitIP(2, time.Minute))

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(engine, http.MethodGet, "").Code)
}

func TestRateLimitIP_FailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	rl := NewRateLimitMiddleware(limiter, logger.Discard())
	engine := newEngine(rl.RateLimitIP(1, time.Minute))

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "").Code)
}

func TestRateLimitIP_DisabledWithZeroLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	rl := NewRateLimitMiddleware(limiter, logger.Discard())
	engine := newEngine(rl.RateLimitIP(0, time.Minute))

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "").Code)
	assert.Zero(t, limiter.calls)
}

func TestCORS(t *testing.T) {
	restricted := newEngine(CORS([]string{"https://chat.example"}))

	w := do(restricted, http.MethodGet, "https://chat.example")
	assert.Equal(t, "https://chat.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(restricted, http.MethodGet, "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(restricted, http.MethodGet, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(restricted, http.MethodOptions, "https://chat.example")
	assert.Equal(t, http.StatusNoContent, w.Code)

	open := newEngine(CORS(nil))
	w = do(open, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/config"
)

func rateLimitRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(config.RateLimitConfig{RequestsPerSecond: rps, Burst: burst}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	r := rateLimitRouter(0.001, 2)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 within burst", i, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 past the burst", w.Code)
	}
}

func TestRateLimit_SeparateIdentities(t *testing.T) {
	r := rateLimitRouter(0.001, 1)

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("first identity: status = %d", w.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/ping", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, second)
	if w.Code != http.StatusOK {
		t.Errorf("second identity: status = %d, limits must be per identity", w.Code)
	}
}

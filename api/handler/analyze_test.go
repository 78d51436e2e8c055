package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/browser"
	"github.com/use-agent/sitelens/cache"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
)

type stubSource struct{ sess *browser.Session }

func (s *stubSource) Acquire(ctx context.Context) (*browser.Session, error) { return s.sess, nil }
func (s *stubSource) Release(sess *browser.Session, healthy bool)           {}

type stubLoader struct {
	outcome *browser.FetchOutcome
	err     error
}

func (l *stubLoader) Load(ctx context.Context, sess *browser.Session, req browser.LoadRequest) (*browser.FetchOutcome, error) {
	return l.outcome, l.err
}

func analyzeRouter(loader *stubLoader, cc *cache.Cache) *gin.Engine {
	gin.SetMode(gin.TestMode)
	az := analyzer.New(&stubSource{sess: browser.NewSession(1, nil)}, loader, nil)
	r := gin.New()
	r.POST("/analyze", Analyze(az, nil, cc))
	return r
}

func postAnalyze(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	r := analyzeRouter(&stubLoader{}, nil)

	w := postAnalyze(r, `{"url": `)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), models.ErrCodeInvalidRequest) {
		t.Errorf("body = %s, want INVALID_REQUEST code", w.Body.String())
	}
}

func TestAnalyze_MissingURL(t *testing.T) {
	r := analyzeRouter(&stubLoader{}, nil)

	if w := postAnalyze(r, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_Success(t *testing.T) {
	loader := &stubLoader{outcome: &browser.FetchOutcome{
		FinalURL: "https://example.com/",
		Status:   200,
		State:    browser.StateSettled,
		HTML:     `<html><head><title>Acme</title></head><body><h1>One</h1><h1>Two</h1></body></html>`,
	}}
	r := analyzeRouter(loader, nil)

	w := postAnalyze(r, `{"url":"https://example.com/"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := w.Body.String()
	for _, want := range []string{
		`"success":true`,
		`"final_url":"https://example.com/"`,
		`"http_status":200`,
		`"schema_types":[]`,
		`"multiple h1 headings"`,
		`"missing meta description"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
}

func TestAnalyze_NavigationTimeoutStatus(t *testing.T) {
	loader := &stubLoader{
		outcome: &browser.FetchOutcome{State: browser.StateTimedOut},
		err: models.NewAnalyzeError(models.ErrCodeNavTimeout,
			"page failed to reach DOM-ready", context.DeadlineExceeded),
	}
	r := analyzeRouter(loader, nil)

	w := postAnalyze(r, `{"url":"https://slow.example/"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"success":false`) || !strings.Contains(body, models.ErrCodeNavTimeout) {
		t.Errorf("body = %s", body)
	}
	if strings.Contains(body, "schema_types") {
		t.Error("failure responses must not carry signal fields")
	}
}

func TestAnalyze_CacheHitSkipsRender(t *testing.T) {
	loader := &stubLoader{outcome: &browser.FetchOutcome{
		FinalURL: "https://example.com/",
		Status:   200,
		State:    browser.StateSettled,
		HTML:     `<html><head><title>Acme</title></head><body><h1>One</h1></body></html>`,
	}}
	cc := cache.New(10)
	r := analyzeRouter(loader, cc)

	w := postAnalyze(r, `{"url":"https://example.com/","max_age_ms":60000}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cache_status":"miss"`) {
		t.Fatalf("first call: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Second call must be served from cache even if rendering now fails.
	loader.outcome = nil
	loader.err = models.NewAnalyzeError(models.ErrCodeNavFailed, "unreachable", nil)

	w = postAnalyze(r, `{"url":"https://example.com/","max_age_ms":60000}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"cache_status":"hit"`) {
		t.Fatalf("second call: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeInvalidRequest, http.StatusBadRequest},
		{models.ErrCodePoolExhausted, http.StatusServiceUnavailable},
		{models.ErrCodeNavTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavFailed, http.StatusBadGateway},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{models.ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e := models.NewAnalyzeError(tt.code, "msg", nil)
		if got := mapErrorToStatus(e); got != tt.want {
			t.Errorf("mapErrorToStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	pool := browser.NewPool(
		config.PoolConfig{Size: 4, AcquireTimeout: time.Second},
		func() (*browser.Session, error) { return browser.NewSession(1, nil), nil },
		func(*browser.Session) {},
		func(*browser.Session) bool { return true },
	)
	defer pool.Close()

	r := gin.New()
	r.GET("/health", Health(pool, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"status":"healthy"`) || !strings.Contains(body, `"max_sessions":4`) {
		t.Errorf("body = %s", body)
	}
}

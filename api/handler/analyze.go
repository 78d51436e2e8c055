package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/cache"
	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/probe"
)

// Analyze returns a handler for POST /api/v1/analyze.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (only when the client opts in via max_age_ms).
//  3. Analyzer.Analyze → rendered fetch + signals + issues.
//  4. Best-effort probes: robots.txt and link-status sample, in parallel.
//  5. Assemble the report, store in cache, return 200.
func Analyze(az *analyzer.Analyzer, pr *probe.Prober, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidRequest,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(req.URL, req.Mobile, req.WaitUntil)
		if cc != nil && req.MaxAgeMs > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAgeMs); hit {
				hitCopy := *cached
				hitCopy.CacheStatus = "hit"
				hitCopy.TimingMs = time.Since(totalStart).Milliseconds()
				c.JSON(http.StatusOK, hitCopy)
				return
			}
		}

		// ── 3. Analyze ──────────────────────────────────────────────
		result, err := az.Analyze(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err, time.Since(totalStart).Milliseconds())
			return
		}

		resp := &models.AnalyzeResponse{
			Success:            true,
			FinalURL:           result.Outcome.FinalURL,
			HTTPStatus:         result.Outcome.Status,
			Title:              result.Extraction.Signals.Title,
			Meta:               result.Extraction.Signals.Meta,
			Headings:           result.Extraction.Signals.Headings,
			Links:              result.Extraction.Signals.Links,
			OpenGraph:          result.Extraction.Signals.OpenGraph,
			TwitterCard:        result.Extraction.Signals.TwitterCard,
			Images:             result.Extraction.Signals.Images,
			AMP:                result.Extraction.Signals.AMP,
			SchemaTypes:        result.Extraction.Signals.SchemaTypes,
			Issues:             result.Issues,
			ExtractionDegraded: result.Extraction.Degraded(),
		}

		// ── 4. Probes ───────────────────────────────────────────────
		if pr != nil {
			ctx := c.Request.Context()
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp.CrawlChecks = pr.RobotsCheck(ctx, result.Outcome.FinalURL)
			}()
			if req.CheckLinks != nil && *req.CheckLinks {
				wg.Add(1)
				go func() {
					defer wg.Done()
					resp.LinkChecks = pr.CheckLinks(ctx,
						result.Extraction.InternalSample,
						result.Extraction.ExternalSample)
				}()
			}
			wg.Wait()
		}

		// ── 5. Cache store + respond ────────────────────────────────
		resp.TimingMs = time.Since(totalStart).Milliseconds()
		if cc != nil && req.MaxAgeMs > 0 {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps an AnalyzeError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timingMs int64) {
	var analyzeErr *models.AnalyzeError
	if !errors.As(err, &analyzeErr) {
		analyzeErr = models.NewAnalyzeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(analyzeErr), models.ErrorResponse{
		Success:  false,
		TimingMs: timingMs,
		Error:    analyzeErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.AnalyzeError) int {
	switch e.Code {
	case models.ErrCodeInvalidRequest:
		return http.StatusBadRequest // 400
	case models.ErrCodePoolExhausted:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeNavTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/sitelens/browser"
	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/seo"
)

// SessionSource hands out browser sessions under a concurrency ceiling.
type SessionSource interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session, healthy bool)
}

// PageLoader drives a single page load on a borrowed session.
type PageLoader interface {
	Load(ctx context.Context, sess *browser.Session, req browser.LoadRequest) (*browser.FetchOutcome, error)
}

// Result is a completed page analysis before response assembly.
type Result struct {
	Outcome    *browser.FetchOutcome
	Extraction *seo.Extraction
	Issues     []string
}

// Analyzer orchestrates one analysis: borrow a session, drive the load,
// extract signals, evaluate rules. It owns no browser state of its own,
// so it is safe for concurrent use.
type Analyzer struct {
	sessions SessionSource
	loader   PageLoader
	cooldown *HostCooldown
}

// New creates an Analyzer.
func New(sessions SessionSource, loader PageLoader, cooldown *HostCooldown) *Analyzer {
	return &Analyzer{
		sessions: sessions,
		loader:   loader,
		cooldown: cooldown,
	}
}

// Analyze runs one full fetch-and-analyze pass. Request validation and
// the cooldown check happen before a session is borrowed, so garbage
// input never consumes pool capacity. The borrowed session is released
// exactly once on every path; load failures release it as unhealthy so
// the pool re-validates it before reuse.
func (a *Analyzer) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*Result, error) {
	target, err := validateURL(req.URL)
	if err != nil {
		return nil, err
	}

	host := target.Hostname()
	if a.cooldown != nil && a.cooldown.Active(host) {
		return nil, models.NewAnalyzeError(models.ErrCodeRateLimited,
			fmt.Sprintf("host %s is cooling down after a recent block", host), nil)
	}

	sess, err := a.sessions.Acquire(ctx)
	if err != nil {
		switch {
		case errors.Is(err, browser.ErrPoolExhausted),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
			return nil, models.NewAnalyzeError(models.ErrCodePoolExhausted,
				"no browser session available, retry later", err)
		default:
			return nil, models.NewAnalyzeError(models.ErrCodeInternal,
				"failed to create browser session", err)
		}
	}

	healthy := false
	defer func() { a.sessions.Release(sess, healthy) }()

	outcome, err := a.loader.Load(ctx, sess, browser.LoadRequest{
		URL:       req.URL,
		Mobile:    req.Mobile,
		MaxWait:   time.Duration(req.MaxWaitMs) * time.Millisecond,
		WaitUntil: req.WaitUntil,
		Stealth:   req.Stealth,
	})
	if err != nil {
		if a.cooldown != nil && outcome != nil && shouldTrip(outcome.Status, outcome.HTML) {
			a.cooldown.Trip(host)
		}
		return nil, err
	}

	// The load succeeded at the browser level but the host may still have
	// served a challenge page. Treat it as a block, not a valid report.
	if shouldTrip(outcome.Status, outcome.HTML) {
		healthy = true
		if a.cooldown != nil {
			a.cooldown.Trip(host)
		}
		return nil, models.NewAnalyzeError(models.ErrCodeRateLimited,
			fmt.Sprintf("host %s is blocking automated traffic (HTTP %d)", host, outcome.Status), nil)
	}

	extraction, err := seo.Extract(outcome.HTML, outcome.FinalURL)
	if err != nil {
		// The session did its job; the parse failure is ours.
		healthy = true
		return nil, models.NewAnalyzeError(models.ErrCodeInternal,
			"failed to parse rendered document", err)
	}
	if extraction.Degraded() {
		slog.Warn("extraction degraded",
			"url", outcome.FinalURL,
			"malformed_schema_blocks", extraction.MalformedSchemaBlocks)
	}

	healthy = true
	return &Result{
		Outcome:    outcome,
		Extraction: extraction,
		Issues:     seo.Evaluate(&extraction.Signals),
	}, nil
}

// validateURL accepts only absolute http(s) URLs with a host.
func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, models.NewAnalyzeError(models.ErrCodeInvalidRequest,
			"url is not parseable", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, models.NewAnalyzeError(models.ErrCodeInvalidRequest,
			"url scheme must be http or https", nil)
	}
	if u.Host == "" {
		return nil, models.NewAnalyzeError(models.ErrCodeInvalidRequest,
			"url must be absolute with a host", nil)
	}
	return u, nil
}

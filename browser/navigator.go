package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"
)

// NavState is the navigator's position in the per-fetch state machine.
type NavState int

const (
	StateIdle NavState = iota
	StateNavigating
	StateWaitingForLoad
	StateWaitingForNetworkIdle
	StateSettled
	StateTimedOut
	StateNavigationFailed
)

func (s NavState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StateWaitingForLoad:
		return "waiting_for_load"
	case StateWaitingForNetworkIdle:
		return "waiting_for_network_idle"
	case StateSettled:
		return "settled"
	case StateTimedOut:
		return "timed_out"
	case StateNavigationFailed:
		return "navigation_failed"
	}
	return "unknown"
}

// LoadRequest describes one page load.
type LoadRequest struct {
	URL       string
	Mobile    bool
	MaxWait   time.Duration
	WaitUntil string // "load", "domcontentloaded", "networkidle"
	Stealth   bool
	Headers   map[string]string
}

// FetchOutcome is the frozen result of one navigation. HTML is consumed
// by the signal extractor and never persisted. A terminal failure state
// carries FailureReason and no usable HTML.
type FetchOutcome struct {
	FinalURL      string
	Status        int
	HTML          string
	ElapsedMs     int64
	State         NavState
	FailureReason string
}

// Failed reports whether the outcome ended in a terminal failure state.
func (o *FetchOutcome) Failed() bool {
	return o.State == StateTimedOut || o.State == StateNavigationFailed
}

// viewportProfile bundles the CDP emulation overrides for a device class.
type viewportProfile struct {
	name      string
	width     int
	height    int
	scale     float64
	mobile    bool
	userAgent string
}

var desktopProfile = viewportProfile{
	name:   "desktop",
	width:  1366,
	height: 768,
	scale:  1.0,
	userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

var mobileProfile = viewportProfile{
	name:   "mobile",
	width:  390,
	height: 844,
	scale:  3.0,
	mobile: true,
	userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) CriOS/124.0.0.0 Mobile/15E148 Safari/604.1",
}

// Navigator drives one page load through the wait-strategy state machine.
// It borrows a Session for the duration of the call and never stores the
// page handle beyond it.
type Navigator struct {
	cfg config.NavigatorConfig
}

// NewNavigator creates a Navigator.
func NewNavigator(cfg config.NavigatorConfig) *Navigator {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 120 * time.Second
	}
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = 500 * time.Millisecond
	}
	return &Navigator{cfg: cfg}
}

// Load runs one fetch. The hard phases (navigation and DOM-ready) fail the
// fetch on timeout. The window-load and network-idle phases are best-effort
// and time-boxed: hitting the deadline there falls through to Settled with
// whatever DOM exists, since some pages (hanging trackers, polling widgets)
// never finish loading or go idle. The freeze then reads through a grace
// context so the partial DOM survives an expired deadline.
//
// Lifecycle:
//
//  1. Deadline guard for the whole operation
//  2. Viewport/user-agent profile + optional stealth JS
//  3. Extra headers and hijack router, before navigation or they don't
//     apply to the load
//  4. Idle listener registered before Navigate, or in-flight requests are
//     missed and the wait returns instantly
//  5. Navigate → DOM-ready → load/idle races → freeze status/HTML/final URL
//
// The cleanup defer parks the tab on about:blank using the original page
// reference so it succeeds even after the request context expires.
func (n *Navigator) Load(ctx context.Context, sess *Session, req LoadRequest) (*FetchOutcome, error) {
	start := time.Now()

	maxWait := req.MaxWait
	if maxWait <= 0 || maxWait > n.cfg.MaxWait {
		maxWait = n.cfg.MaxWait
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	page := sess.Page()
	defer func() {
		if err := page.Navigate("about:blank"); err != nil {
			slog.Warn("cleanup: failed to park session on about:blank",
				"session", sess.ID, "error", err)
		}
	}()

	profile := desktopProfile
	if req.Mobile {
		profile = mobileProfile
	}
	if err := applyProfile(page, profile); err != nil {
		slog.Warn("viewport override failed, proceeding with defaults",
			"profile", profile.name, "error", err)
	}
	sess.SetProfile(profile.name)

	if req.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", err)
		}
	}

	headers := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if ref := originReferer(req.URL); ref != "" {
			headers["Referer"] = ref
		}
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(headers),
		}.Call(page)
	}

	router := setupHijack(page, n.cfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	windowLoad, networkIdle := waitPlan(req.WaitUntil)

	// WaitRequestIdle uses the Fetch domain, which conflicts with the
	// hijack router on Chromium 145+. With blocking enabled the idle wait
	// falls back to WaitDOMStable.
	var waitIdle func()
	if networkIdle && router == nil {
		waitIdle = p.WaitRequestIdle(n.cfg.IdleWindow, nil, nil, nil)
	}

	state := StateNavigating
	if err := p.Navigate(req.URL); err != nil {
		return n.fail(start, state, err, "navigation to target URL failed")
	}

	// DOM-ready is the only hard wait: content parsed, sub-resources
	// possibly still in flight.
	state = StateWaitingForLoad
	if err := waitDOMReady(p); err != nil {
		return n.fail(start, state, err, "page failed to reach DOM-ready")
	}

	if windowLoad {
		// One hanging image or tracker script must not fail a fetch
		// whose DOM is already usable.
		loaded := make(chan struct{})
		go func() {
			_ = p.WaitLoad()
			close(loaded)
		}()
		select {
		case <-loaded:
		case <-ctx.Done():
			slog.Debug("window load never fired, proceeding with parsed DOM",
				"url", req.URL)
		}
	}

	if networkIdle {
		state = StateWaitingForNetworkIdle
		if waitIdle != nil {
			// Race the idle detector against the overall deadline; the
			// deadline falls through with the current DOM state.
			done := make(chan struct{})
			go func() {
				waitIdle()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				slog.Debug("network never went idle, settling with current DOM",
					"url", req.URL)
			}
		} else {
			if err := p.WaitDOMStable(n.cfg.IdleWindow, 0.1); err != nil {
				slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
					"error", err)
			}
		}
	}

	state = StateSettled

	// After a best-effort wait ate the deadline, p refuses further CDP
	// calls; the freeze reads through the unexpired page handle instead.
	readCtx, cancelRead := settleContext(ctx)
	defer cancelRead()
	rp := page.Context(readCtx)

	status := evalStatus(rp)

	rawHTML, err := rp.HTML()
	if err != nil {
		return n.fail(start, state, err, "failed to extract rendered HTML")
	}

	finalURL := evalStringOrEmpty(rp, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	if status >= 400 && !hasVisibleText(rawHTML) {
		reason := fmt.Sprintf("HTTP %d without renderable body", status)
		outcome := &FetchOutcome{
			FinalURL:      finalURL,
			Status:        status,
			ElapsedMs:     time.Since(start).Milliseconds(),
			State:         StateNavigationFailed,
			FailureReason: reason,
		}
		return outcome, models.NewAnalyzeError(models.ErrCodeNavFailed, reason, nil)
	}

	return &FetchOutcome{
		FinalURL:  finalURL,
		Status:    status,
		HTML:      rawHTML,
		ElapsedMs: time.Since(start).Milliseconds(),
		State:     StateSettled,
	}, nil
}

// fail builds the terminal outcome and typed error for a hard failure.
// Deadline/cancellation during a hard phase is a NAVIGATION_TIMEOUT; all
// other errors (DNS, connection refused, TLS) are NAVIGATION_FAILED.
func (n *Navigator) fail(start time.Time, state NavState, err error, msg string) (*FetchOutcome, error) {
	outcome := &FetchOutcome{
		ElapsedMs:     time.Since(start).Milliseconds(),
		FailureReason: msg,
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome.State = StateTimedOut
		return outcome, models.NewAnalyzeError(models.ErrCodeNavTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		outcome.State = StateTimedOut
		return outcome, models.NewAnalyzeError(models.ErrCodeNavTimeout, "request canceled", err)
	default:
		outcome.State = StateNavigationFailed
		slog.Debug("navigation failed", "state", state.String(), "error", err)
		return outcome, models.NewAnalyzeError(models.ErrCodeNavFailed, msg, err)
	}
}

// settleGrace bounds the DOM-freeze reads after the overall deadline
// expired during a best-effort wait phase.
const settleGrace = 2 * time.Second

// waitPlan maps a wait_until mode to the best-effort phases that run
// after the hard DOM-ready wait.
func waitPlan(waitUntil string) (windowLoad, networkIdle bool) {
	switch waitUntil {
	case "domcontentloaded":
		return false, false
	case "load":
		return true, false
	default:
		return true, true
	}
}

// waitDOMReady blocks until the document has been parsed. Checks
// readyState first so an event that already fired is not missed.
func waitDOMReady(p *rod.Page) error {
	_, err := p.Eval(`() => new Promise(resolve => {
		if (document.readyState !== "loading") return resolve();
		document.addEventListener("DOMContentLoaded", () => resolve(), {once: true});
	})`)
	return err
}

// settleContext returns the context for freezing status/HTML/final URL
// after the wait phases. A deadline spent in a best-effort wait is not a
// failure, so reads get a short grace window and the partial DOM is
// still captured.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), settleGrace)
}

// applyProfile sets the device metrics and user agent for the fetch.
func applyProfile(page *rod.Page, p viewportProfile) error {
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             p.width,
		Height:            p.height,
		DeviceScaleFactor: p.scale,
		Mobile:            p.mobile,
	}).Call(page); err != nil {
		return err
	}
	return proto.EmulationSetUserAgentOverride{
		UserAgent: p.userAgent,
	}.Call(page)
}

// evalStatus reads the HTTP status of the navigation response via the
// Performance API. Avoids CDP Network-domain event listeners, which
// conflict with the Fetch domain used by the hijack router.
func evalStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// originReferer builds a scheme://host/ referer for the target URL.
func originReferer(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// hasVisibleText reports whether the document contains any rendered text
// outside script/style elements. Used to decide if an error response still
// has a body worth analyzing.
func hasVisibleText(rawHTML string) bool {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth == 0 && strings.TrimSpace(string(tokenizer.Text())) != "" {
				return true
			}
		}
	}
}

package probe

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
)

// maxRobotsBody bounds how much of a robots.txt file is read.
const maxRobotsBody = 512 << 10

// Prober runs the best-effort crawlability checks that accompany an
// analysis: the robots.txt probe and the link-status probe. Probe
// failures degrade to unknowns, never to analysis errors.
type Prober struct {
	cfg    config.ProbeConfig
	client *http.Client
}

// NewProber creates a Prober.
func NewProber(cfg config.ProbeConfig) *Prober {
	if cfg.LinkSample <= 0 {
		cfg.LinkSample = 4
	}
	return &Prober{
		cfg:    cfg,
		client: newClient(cfg.Timeout),
	}
}

// RobotsCheck fetches the robots.txt for the page's origin and reports
// whether the wildcard user-agent group disallows the page path, plus any
// declared sitemap URLs. A fetch or parse failure leaves BlockedByRobots
// nil; a 404 means no robots file, so nothing is blocked.
func (p *Prober) RobotsCheck(ctx context.Context, pageURL string) *models.CrawlChecks {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	checks := &models.CrawlChecks{
		RobotsURL: robotsURL,
		Sitemaps:  []string{},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return checks
	}
	browserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return checks
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		allowed := false
		checks.BlockedByRobots = &allowed
		return checks
	}
	if resp.StatusCode != http.StatusOK {
		return checks
	}

	pagePath := u.EscapedPath()
	if pagePath == "" {
		pagePath = "/"
	}

	blocked, sitemaps := parseRobots(io.LimitReader(resp.Body, maxRobotsBody), pagePath)
	checks.BlockedByRobots = &blocked
	checks.Sitemaps = sitemaps
	return checks
}

// parseRobots scans a robots.txt body for Sitemap declarations and the
// User-agent: * group's Disallow rules, and matches the page path against
// them. Only prefix matching is done; Allow overrides are not modeled.
func parseRobots(r io.Reader, pagePath string) (blocked bool, sitemaps []string) {
	sitemaps = []string{}
	inStarGroup := false
	lastWasAgent := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "sitemap":
			if value != "" {
				sitemaps = append(sitemaps, value)
			}
		case "user-agent":
			// Consecutive user-agent lines share one group; a user-agent
			// line after rules starts a new group.
			isStar := value == "*"
			if lastWasAgent {
				inStarGroup = inStarGroup || isStar
			} else {
				inStarGroup = isStar
			}
			lastWasAgent = true
			continue
		case "disallow":
			if inStarGroup && value != "" && pathMatches(pagePath, value) {
				blocked = true
			}
		}
		lastWasAgent = false
	}
	return blocked, sitemaps
}

// pathMatches does prefix matching of a page path against a disallow
// rule. Wildcard rules match on the prefix before the first "*".
func pathMatches(pagePath, rule string) bool {
	rule = strings.TrimSuffix(rule, "$")
	if i := strings.Index(rule, "*"); i >= 0 {
		rule = rule[:i]
	}
	return strings.HasPrefix(pagePath, rule)
}

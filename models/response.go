package models

// AnalyzeResponse is the success response for POST /api/v1/analyze.
// Signal fields are always populated on success; SchemaTypes and Issues
// are empty slices (never null) when nothing was found.
type AnalyzeResponse struct {
	Success bool `json:"success"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`

	// TimingMs is the navigation + render duration in milliseconds.
	TimingMs int64 `json:"timing_ms"`

	// HTTPStatus is the status of the primary navigation response
	// (0 when the browser could not observe it).
	HTTPStatus int `json:"http_status"`

	Title    *string     `json:"title"`
	Meta     MetaSignals `json:"meta"`
	Headings HeadingSet  `json:"headings"`
	Links    LinkCounts  `json:"links"`

	OpenGraph   map[string]string `json:"open_graph"`
	TwitterCard map[string]string `json:"twitter_card"`
	Images      ImageStats        `json:"images"`
	AMP         AMPSignals        `json:"amp"`

	SchemaTypes []string `json:"schema_types"`

	// Issues lists detected deficiencies in rule-evaluation order.
	Issues []string `json:"issues"`

	// ExtractionDegraded reports that some signals were skipped
	// (e.g. malformed JSON-LD blocks). The report is still best-effort valid.
	ExtractionDegraded bool `json:"extraction_degraded,omitempty"`

	// CrawlChecks reports robots.txt findings for the final URL's host.
	CrawlChecks *CrawlChecks `json:"crawl_checks,omitempty"`

	// LinkChecks reports the status of a small sample of page links.
	LinkChecks *LinkChecks `json:"link_checks,omitempty"`

	// CacheStatus indicates whether the report was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`
}

// ErrorResponse is the failure response shape. No signal fields are
// present; Error carries the taxonomy code and a human-readable message.
type ErrorResponse struct {
	Success  bool         `json:"success"`
	TimingMs int64        `json:"timing_ms"`
	Error    *ErrorDetail `json:"error"`
}

// CrawlChecks is the best-effort robots.txt probe result.
type CrawlChecks struct {
	RobotsURL       string   `json:"robots_url"`
	BlockedByRobots *bool    `json:"blocked_by_robots"`
	Sitemaps        []string `json:"sitemaps"`
}

// LinkChecks samples the status of internal and external links.
type LinkChecks struct {
	Internal []LinkStatus `json:"internal"`
	External []LinkStatus `json:"external"`
}

// LinkStatus is the probe result for a single link.
type LinkStatus struct {
	URL       string `json:"url"`
	FinalURL  string `json:"final_url"`
	Status    int    `json:"status"`
	Redirects int    `json:"redirects"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser session pool.
type PoolStats struct {
	MaxSessions  int `json:"max_sessions"`
	LiveSessions int `json:"live_sessions"`
	BusySessions int `json:"busy_sessions"`
	Waiting      int `json:"waiting"`
}

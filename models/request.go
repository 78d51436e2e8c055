package models

// AnalyzeRequest is the payload for POST /api/v1/analyze.
type AnalyzeRequest struct {
	// URL is the page to render and analyze. Required, absolute http/https.
	URL string `json:"url" binding:"required,url"`

	// Mobile switches the viewport profile to a mobile device
	// (390x844, mobile user agent). Default: false (desktop 1366x768).
	Mobile bool `json:"mobile,omitempty"`

	// MaxWaitMs is the overall page-load budget in milliseconds.
	// Default: 35000. Max: 120000.
	MaxWaitMs int `json:"max_wait_ms,omitempty" binding:"omitempty,min=1,max=120000"`

	// WaitUntil selects the wait strategy after navigation.
	// "networkidle" (default): DOM-ready, then a best-effort quiescence
	// window for content added by deferred scripts.
	// "load": stop at the load event.
	// "domcontentloaded": stop as soon as the document is parsed.
	WaitUntil string `json:"wait_until,omitempty" binding:"omitempty,oneof=load domcontentloaded networkidle"`

	// Stealth enables anti-bot-detection evasions (navigator.webdriver
	// masking etc.). Default: false.
	Stealth bool `json:"stealth,omitempty"`

	// CheckLinks enables the link-status sample probe on success.
	// Default: true.
	CheckLinks *bool `json:"check_links,omitempty"`

	// MaxAgeMs enables the response cache: a cached report younger than
	// this many milliseconds is returned without rendering. 0 disables.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *AnalyzeRequest) Defaults() {
	if r.MaxWaitMs == 0 {
		r.MaxWaitMs = 35000
	}
	if r.WaitUntil == "" {
		r.WaitUntil = "networkidle"
	}
	if r.CheckLinks == nil {
		t := true
		r.CheckLinks = &t
	}
}

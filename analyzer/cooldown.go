package analyzer

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// blockMarkers are body fragments that identify WAF/CDN challenge pages.
// Matching is case-insensitive over the first few KB of the document.
var blockMarkers = []string{
	"access denied",
	"attention required",
	"checking your browser",
	"cf-challenge",
	"just a moment",
	"please verify you are a human",
	"are you a robot",
	"captcha",
	"ddos protection",
	"request unsuccessful. incapsula",
}

// blockScanLimit bounds how much of the body the marker scan reads.
const blockScanLimit = 8192

// HostCooldown tracks hosts that recently served a WAF/CDN block so
// repeated fetches don't burn browser sessions on a host that will keep
// blocking. Entries expire after the TTL; a background sweep prevents
// unbounded growth from one-off hosts.
type HostCooldown struct {
	ttl   time.Duration
	hosts sync.Map // host -> expiry time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewHostCooldown creates a cooldown tracker and starts its sweep loop.
func NewHostCooldown(ttl time.Duration) *HostCooldown {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	hc := &HostCooldown{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go hc.sweepLoop()
	return hc
}

// Trip puts a host into cooldown until the TTL elapses.
func (hc *HostCooldown) Trip(host string) {
	host = strings.ToLower(host)
	hc.hosts.Store(host, time.Now().Add(hc.ttl))
	slog.Warn("host tripped into cooldown", "host", host, "ttl", hc.ttl)
}

// Active reports whether a host is currently cooling down. Expired
// entries are removed on read.
func (hc *HostCooldown) Active(host string) bool {
	host = strings.ToLower(host)
	v, ok := hc.hosts.Load(host)
	if !ok {
		return false
	}
	if time.Now().After(v.(time.Time)) {
		hc.hosts.Delete(host)
		return false
	}
	return true
}

// Stop terminates the sweep loop.
func (hc *HostCooldown) Stop() {
	hc.once.Do(func() { close(hc.stop) })
}

func (hc *HostCooldown) sweepLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			hc.hosts.Range(func(key, value any) bool {
				if now.After(value.(time.Time)) {
					hc.hosts.Delete(key)
				}
				return true
			})
		case <-hc.stop:
			return
		}
	}
}

// looksLikeBlocked scans the head of a rendered document for WAF
// challenge markers.
func looksLikeBlocked(rawHTML string) bool {
	if rawHTML == "" {
		return false
	}
	if len(rawHTML) > blockScanLimit {
		rawHTML = rawHTML[:blockScanLimit]
	}
	lower := strings.ToLower(rawHTML)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// shouldTrip decides whether a fetch result indicates the host is
// actively blocking automated traffic. Block-typical statuses alone are
// not enough; plenty of sites 403 a single page without a WAF.
func shouldTrip(status int, rawHTML string) bool {
	blockedStatus := status == 403 || status == 429 || status == 503
	return blockedStatus && looksLikeBlocked(rawHTML)
}

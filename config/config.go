package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Pool      PoolConfig
	Navigator NavigatorConfig
	Probe     ProbeConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the default proxy URL for all navigation.
	DefaultProxy string
}

// PoolConfig controls the browser session pool.
type PoolConfig struct {
	// Size is the concurrency ceiling: the fixed number of reusable
	// browser sessions. Sessions are created lazily up to this limit.
	Size int // default: 4

	// AcquireTimeout bounds how long an analyze call may wait in the
	// FIFO queue before failing with POOL_EXHAUSTED.
	AcquireTimeout time.Duration // default: 10s
}

// NavigatorConfig controls page navigation and waiting.
type NavigatorConfig struct {
	// MaxWait caps the per-page budget a client may request.
	MaxWait time.Duration // default: 120s

	// IdleWindow is the network-quiescence window for the best-effort
	// network-idle wait.
	IdleWindow time.Duration // default: 500ms

	// BlockedResourceTypes lists CDP resource types to block during
	// navigation (e.g. "Image", "Font", "Media"). Blocking uses the
	// Fetch domain, which forces the idle wait onto the DOM-stable
	// fallback, so the default is to block nothing.
	BlockedResourceTypes []string

	// CooldownTTL is how long a host stays cooled down after a
	// WAF/CDN block.
	CooldownTTL time.Duration // default: 15m
}

// ProbeConfig controls the robots.txt and link-status probes.
type ProbeConfig struct {
	// Enabled toggles both probes.
	Enabled bool // default: true

	// LinkSample is how many internal and external links to check.
	LinkSample int // default: 4

	// Timeout is the per-probe-request deadline.
	Timeout time.Duration // default: 5s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the analysis report cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached reports.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SITELENS_HOST", "0.0.0.0"),
			Port: envIntOr("SITELENS_PORT", 8080),
			Mode: envOr("SITELENS_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SITELENS_HEADLESS", true),
			NoSandbox:    envBoolOr("SITELENS_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SITELENS_BROWSER_BIN"),
			DefaultProxy: os.Getenv("SITELENS_PROXY"),
		},
		Pool: PoolConfig{
			Size:           envIntOr("SITELENS_POOL_SIZE", 4),
			AcquireTimeout: envDurationOr("SITELENS_ACQUIRE_TIMEOUT", 10*time.Second),
		},
		Navigator: NavigatorConfig{
			MaxWait:              envDurationOr("SITELENS_MAX_WAIT", 120*time.Second),
			IdleWindow:           envDurationOr("SITELENS_IDLE_WINDOW", 500*time.Millisecond),
			BlockedResourceTypes: envSliceOr("SITELENS_BLOCKED_RESOURCES", nil),
			CooldownTTL:          envDurationOr("SITELENS_COOLDOWN_TTL", 15*time.Minute),
		},
		Probe: ProbeConfig{
			Enabled:    envBoolOr("SITELENS_PROBES", true),
			LinkSample: envIntOr("SITELENS_LINK_SAMPLE", 4),
			Timeout:    envDurationOr("SITELENS_PROBE_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SITELENS_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SITELENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SITELENS_RATE_RPS", 5.0),
			Burst:             envIntOr("SITELENS_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SITELENS_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("SITELENS_LOG_LEVEL", "info"),
			Format: envOr("SITELENS_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

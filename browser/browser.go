package browser

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sitelens/config"
)

// Browser owns the headless Chrome process and creates sessions for the
// pool. It is safe for concurrent use.
type Browser struct {
	rod    *rod.Browser
	cfg    config.BrowserConfig
	nextID atomic.Int64
}

// Launch starts a headless browser and connects to it.
func Launch(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// Keep background tabs rendering at full speed; throttled timers make
	// the network-idle wait unreliable.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch failed: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect failed: %w", err)
	}

	return &Browser{rod: b, cfg: cfg}, nil
}

// NewSession creates a fresh browser tab wrapped in a Session. Intended
// for use as the Pool's Factory.
func (b *Browser) NewSession() (*Session, error) {
	page, err := b.rod.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	id := b.nextID.Add(1)
	slog.Debug("browser: session created", "id", id)
	return NewSession(id, page), nil
}

// DestroySession closes a session's tab. Intended for use as the Pool's
// Destroyer.
func (b *Browser) DestroySession(s *Session) {
	if s == nil || s.page == nil {
		return
	}
	if err := s.page.Close(); err != nil {
		slog.Warn("browser: failed to close page", "id", s.ID, "error", err)
	}
}

// ValidateSession checks a flagged session with a cheap CDP round trip.
// Intended for use as the Pool's Validator. A session whose engine crashed
// or whose target was detached fails here and is replaced by the pool.
func (b *Browser) ValidateSession(s *Session) bool {
	if s == nil || s.page == nil {
		return false
	}
	_, err := s.page.Info()
	return err == nil
}

// Close kills the browser process. Call on graceful shutdown to prevent
// zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down")
	b.rod.MustClose()
}

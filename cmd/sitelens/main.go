package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sitelens/analyzer"
	"github.com/use-agent/sitelens/api"
	"github.com/use-agent/sitelens/browser"
	"github.com/use-agent/sitelens/cache"
	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/probe"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("sitelens starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"poolSize", cfg.Pool.Size,
	)

	// ── 3. Launch browser + session pool ────────────────────────────
	b, err := browser.Launch(cfg.Browser)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	pool := browser.NewPool(cfg.Pool, b.NewSession, b.DestroySession, b.ValidateSession)
	defer pool.Close()

	// ── 4. Navigator + analyzer ─────────────────────────────────────
	nav := browser.NewNavigator(cfg.Navigator)
	cooldown := analyzer.NewHostCooldown(cfg.Navigator.CooldownTTL)
	defer cooldown.Stop()
	az := analyzer.New(pool, nav, cooldown)

	// ── 4b. Probes + cache ──────────────────────────────────────────
	var pr *probe.Prober
	if cfg.Probe.Enabled {
		pr = probe.NewProber(cfg.Probe)
	}
	cc := cache.New(cfg.Cache.MaxEntries)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(az, pool, pr, cfg, cc, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Close() and b.Close() run via defer — drain sessions, kill Chrome.
	slog.Info("sitelens stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

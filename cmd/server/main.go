package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/skilltree/internal/api"
	"github.com/gyaneshwarpardhi/skilltree/internal/config"
	"github.com/gyaneshwarpardhi/skilltree/internal/engine"
	"github.com/gyaneshwarpardhi/skilltree/internal/event"
	"github.com/gyaneshwarpardhi/skilltree/internal/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/trees.yaml", "Path to skill tree YAML config")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Build templates ──────────────────────────────────────────────────────
	cat, err := engine.NewCatalog(cfg)
	if err != nil {
		slog.Error("failed to build skill trees", "err", err)
		os.Exit(1)
	}
	slog.Info("skill trees built", "trees", cat.Len(), "version", cat.Version())

	// ── Snapshot store ───────────────────────────────────────────────────────
	var st engine.Store
	if cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			slog.Error("failed to open store", "path", cfg.Store.Path, "err", err)
			os.Exit(1)
		}
		defer db.Close()
		st = db
		slog.Info("snapshot store opened", "path", cfg.Store.Path)
	} else {
		slog.Warn("no store path configured, sessions are memory only")
	}

	// ── Engine ───────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(ctx, cat, st, cfg.Engine)
	eng.OnEvent(func(ev event.Event) {
		slog.Info("skill event",
			"type", ev.Type,
			"session", ev.SessionID,
			"node", ev.NodeID,
			"points", ev.PointsGiven,
			"total", ev.TotalPoints,
			"reset", len(ev.Reset),
		)
	})

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.TreeConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		newCat, err := engine.NewCatalog(newCfg)
		if err != nil {
			slog.Warn("hot-reload skipped: tree build failed", "err", err)
			return
		}
		eng.SwapCatalog(newCat)
		slog.Info("skill trees hot-reloaded", "trees", newCat.Len())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	eng.Shutdown() // flush snapshot writes before the store closes
	slog.Info("goodbye")
}

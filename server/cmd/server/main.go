package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sensordash/sensordash/server/internal/api"
	"github.com/sensordash/sensordash/server/internal/cache"
	"github.com/sensordash/sensordash/server/internal/channel"
	"github.com/sensordash/sensordash/server/internal/config"
	"github.com/sensordash/sensordash/server/internal/metrics"
	"github.com/sensordash/sensordash/server/internal/pipeline"
	"github.com/sensordash/sensordash/server/internal/source"
	"github.com/sensordash/sensordash/server/internal/store"
	"github.com/sensordash/sensordash/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve static dashboard files from this directory; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sensordash-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if lv, err := config.ParseLevel(cfg.Server.LogLevel); err == nil {
		level.Set(lv)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"source_mode", cfg.Source.Mode,
		"path", cfg.Source.Path,
		"stale_after", cfg.Server.StaleAfter,
		"cache", cfg.Cache.Enabled(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	st := store.New(cfg.Server.StaleAfter)

	// WebSocket hub: pushes on every update plus a heartbeat.
	hub := ws.New(st, cfg.Server.BroadcastInterval, m)
	go hub.Run(ctx)

	opts := []pipeline.Option{pipeline.WithNotifier(hub), pipeline.WithMetrics(m)}
	if cfg.Cache.Enabled() {
		rdb, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.Password(), cfg.Cache.DB)
		if err != nil {
			// The mirror is optional; the dashboard runs without it.
			slog.Warn("redis mirror disabled", "addr", cfg.Cache.RedisAddr, "err", err)
		} else {
			defer rdb.Close()
			opts = append(opts, pipeline.WithMirror(cache.New(rdb, cfg.Cache.Key, cfg.Cache.TTL)))
		}
	}
	p := pipeline.New(channel.Catalog(), st, opts...)

	if ok, err := p.Restore(ctx); err != nil {
		slog.Warn("restore from mirror failed", "err", err)
	} else if ok {
		slog.Info("restored last known sensor list from mirror")
	}

	src, err := source.New(cfg.Source, m)
	if err != nil {
		slog.Error("failed to create source", "err", err)
		os.Exit(1)
	}
	unsubscribe, err := src.Subscribe(ctx, p.Handle)
	if err != nil {
		slog.Error("failed to subscribe", "mode", cfg.Source.Mode, "err", err)
		os.Exit(1)
	}
	defer unsubscribe()

	// Hot-reload log level and stale threshold. Other settings need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			if lv, err := config.ParseLevel(next.Server.LogLevel); err == nil {
				level.Set(lv)
			}
			st.SetStaleAfter(next.Server.StaleAfter)
			slog.Info("config reloaded",
				"log_level", next.Server.LogLevel,
				"stale_after", next.Server.StaleAfter,
			)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, channel.Catalog()))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", metrics.Handler(reg))

	// Optional: serve a pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("sensordash-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

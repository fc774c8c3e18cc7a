package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensordash/sensordash/agent/internal/config"
	"github.com/sensordash/sensordash/agent/internal/sensor"
	"github.com/sensordash/sensordash/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sensordash-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if lv, err := config.ParseLevel(cfg.Agent.LogLevel); err == nil {
		level.Set(lv)
	}
	slog.Info("config loaded",
		"shape", cfg.Agent.Shape,
		"path", cfg.Agent.Path,
		"interval", cfg.Agent.Interval,
		"buffer_size", cfg.Agent.BufferSize,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w, err := shipper.NewWriter(cfg.Agent)
	if err != nil {
		slog.Error("failed to create writer", "shape", cfg.Agent.Shape, "err", err)
		os.Exit(1)
	}
	defer w.Close()

	ship := shipper.New(w, cfg.Agent.BufferSize, cfg.Agent.Timeout)
	go ship.Run(ctx)

	// Hot-reload log level and interval. Shape and target need a restart.
	intervals := make(chan time.Duration, 1)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if lv, err := config.ParseLevel(updated.Agent.LogLevel); err == nil {
				level.Set(lv)
			}
			select {
			case intervals <- updated.Agent.Interval:
			default:
			}
			slog.Info("config hot-reloaded", "interval", updated.Agent.Interval)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	gen := sensor.New(cfg.Agent.Seed)
	ticker := time.NewTicker(cfg.Agent.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sensordash-agent shutting down", "unsent", ship.Len())
			return
		case d := <-intervals:
			ticker.Reset(d)
		case <-ticker.C:
			r := gen.Next()
			ship.Ship(r)
			slog.Debug("generated reading",
				"temperature", *r.Temperature,
				"motion", *r.Motion,
				"peer", *r.Peer,
			)
		}
	}
}

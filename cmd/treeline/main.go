package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treeline/internal/app"
	"treeline/internal/core/config"
	"treeline/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./treeline.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single scan and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("treeline v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./treeline.toml" {
			cfg, err = config.Load("./treeline.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	// A vault path argument overrides the configured root.
	if flag.NArg() > 0 {
		cfg.Vault.Root = flag.Arg(0)
	}

	ctx := context.Background()

	if cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, "treeline")
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					slog.Warn("tracer shutdown failed", "error", err)
				}
			}()
		}
	}

	engine, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize engine", "error", err)
		os.Exit(1)
	}

	if err := engine.InitialScan(ctx); err != nil {
		slog.Error("initial scan failed", "error", err)
		os.Exit(1)
	}

	if *once {
		g := engine.Snapshot()
		fmt.Printf("nodes=%d edges=%d unresolved=%d\n",
			g.NodeCount(), g.EdgeCount(), g.UnresolvedCount())
		os.Exit(0)
	}

	obs := observability.NewServer(cfg.Observability.MetricsAddr, func() observability.HealthStatus {
		g := engine.Snapshot()
		return observability.HealthStatus{
			Status:    "up",
			NodeCount: g.NodeCount(),
			EdgeCount: g.EdgeCount(),
		}
	})
	if err := obs.Start(ctx); err != nil {
		slog.Error("failed to start observability server", "error", err)
		os.Exit(1)
	}

	engine.SetUpdateHandler(func(u app.Update) {
		slog.Debug("graph updated",
			"delta", u.DeltaID, "origin", u.Origin,
			"nodes", u.NodeCount, "edges", u.EdgeCount)
	})

	if err := engine.Start(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	slog.Info("watching vault", "root", cfg.Vault.Root)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Stop(shutdownCtx); err != nil {
		slog.Warn("observability server shutdown failed", "error", err)
	}
	if err := engine.Close(); err != nil {
		slog.Warn("engine shutdown failed", "error", err)
	}
}

// Package main is the entry point for the log collection server: a
// TCP ingestion listener, batch SQLite writer, retention sweeper, and
// HTTP query API wired together by internal/app.
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

	"gomodel/config"
	"gomodel/internal/app"
	"gomodel/internal/logging"
	"gomodel/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level}, os.Stdout)

	slog.Info("starting logserver",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	addr := config.Addr(cfg.API.IP, cfg.API.Port)
	if err := a.Start(addr); err != nil {
		slog.Error("application failed to start", "error", err)
		os.Exit(1)
	}
}

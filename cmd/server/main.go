// Package main is the entry point for the sqlbridge HTTP server binary.
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"sqlbridge/internal/app"
	"sqlbridge/internal/config"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn("configuration warning", "warning", w)
	}

	logger.Info("starting sqlbridge server",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"env", cfg.Env)
	logger.Info("health check", "url", "http://"+curlHostForListenAddr(cfg.ListenAddr)+"/healthz")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("initialize", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// curlHostForListenAddr turns a listen address into a host suitable for a
// local curl command: wildcard or empty hosts become localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + port
}

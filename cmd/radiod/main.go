// ABOUTME: Main entry point for the folder radio broadcaster
// ABOUTME: Loads config, starts stations, runs HTTP server
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/harper/folder-radio/internal/application/config"
	"github.com/harper/folder-radio/internal/application/manager"
	"github.com/harper/folder-radio/internal/infrastructure/http"
	"github.com/harper/folder-radio/internal/infrastructure/logging"
	"github.com/harper/folder-radio/internal/infrastructure/metrics"
)

func main() {
	if err := run(); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON}, os.Stderr)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	mgr, err := manager.NewFromConfig(cfg, m, log)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	// Bind before starting any clock so a taken port fails fast.
	addr := net.JoinHostPort(cfg.Listen.Host, fmt.Sprintf("%d", cfg.Listen.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	if err := mgr.Start(); err != nil {
		ln.Close()
		return fmt.Errorf("start stations: %w", err)
	}

	srv := &nethttp.Server{
		Handler:           http.NewRouter(mgr, reg, log),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // Streaming
		IdleTimeout:       0, // Streaming
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	// Graceful shutdown
	shutdown := make(chan error, 1)
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down")

		// Release listeners first; their handlers would otherwise hold
		// Shutdown open until the deadline.
		if err := mgr.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("shutdown stations")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		shutdown <- srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("listening (try /stations)")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		mgr.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}

	if err := <-shutdown; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("shutdown complete")
	return nil
}

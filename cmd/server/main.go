package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/app"
	"github.com/nekogravitycat/seat-booking-backend/internal/config"
	"github.com/nekogravitycat/seat-booking-backend/internal/db"
	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/logger"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "seat-booking",
	})
	slog.SetDefault(lg.Logger)

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		lg.Fatal("failed to connect to db", "error", err)
	}
	defer pool.Close()

	container, err := app.NewContainer(app.FromConfig(cfg, pool, lg.Logger))
	if err != nil {
		lg.Fatal("failed to init app", "error", err)
	}
	defer container.Close()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		lg.Info("server running", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", "error", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	lg.Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}

	lg.Info("server exited gracefully")
}

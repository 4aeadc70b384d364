/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lending tracker server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env honored in dev)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the overdue sweep (when enabled)
  6. Start server with graceful shutdown

CONFIGURATION (environment):
  PORT                 HTTP server port (default: 8080)
  LOG_LEVEL            trace|debug|info|warn|error (default: info)
  DB_PATH              SQLite database path, ":memory:" for ephemeral
  ADMIN_PASSWORD_HASH  bcrypt hash of the operator password; empty disables auth
  JWT_SECRET           signing secret for bearer tokens
  TOKEN_TTL_HOURS      token lifetime (default: 24)
  SWEEP_ENABLED        run the daily overdue sweep (default: true)
  SWEEP_SCHEDULE       cron expression for the sweep (default: "0 6 * * *")
  CORS_ORIGINS         comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep, close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - sweep/sweep.go: Scheduled overdue sweep
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/lending-engine/api"
	"github.com/warp/lending-engine/config"
	"github.com/warp/lending-engine/store/sqlite"
	"github.com/warp/lending-engine/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.WithField("level", cfg.App.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Initialize store
	st, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer st.Close()
	log.WithField("path", cfg.DB.Path).Info("database ready")

	// Auth is optional: no password hash means open endpoints (dev mode).
	auth := api.NewAuthenticator(cfg.Auth.PasswordHash, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if auth == nil {
		log.Warn("ADMIN_PASSWORD_HASH not set, authentication disabled")
	}

	handler := api.NewHandler(st, auth, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	// Overdue sweep
	var sweeper *sweep.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = sweep.New(st, cfg.Sweep.Schedule, log)
		if err := sweeper.Start(); err != nil {
			log.WithError(err).Fatal("failed to start overdue sweep")
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	log.Info("server stopped")
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rewards ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load environment config
  2. Initialize SQLite store
  3. Connect optional Redis cache and OpenAI advisor
  4. Wire ledger service, gate, and HTTP handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: rewards.db)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  JWT_SECRET      required; HS256 signing secret
  GATE_THRESHOLD  minimum credit score (default 700)
  REDIS_ADDR      optional; enables the read cache
  OPENAI_API_KEY  optional; enables POST /api/advisor
  CORS_ORIGINS    comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/paylane/rewards-ledger/advisor"
	"github.com/paylane/rewards-ledger/api"
	"github.com/paylane/rewards-ledger/catalog"
	"github.com/paylane/rewards-ledger/config"
	"github.com/paylane/rewards-ledger/gate"
	"github.com/paylane/rewards-ledger/ledger"
	"github.com/paylane/rewards-ledger/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "rewards.db", "SQLite database path")
	flag.Parse()

	cfg := config.Load()

	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}

	// Initialize store
	st, err := sqlite.New(*dbPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer st.Close()

	// Optional Redis cache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unreachable, caching disabled")
			rdb = nil
		}
		cancel()
	}

	// Wire the domain
	cat := catalog.Default()
	svc := ledger.NewService(st, cat)
	g := gate.New(st, cfg.GateThreshold)

	handler := api.NewHandler(svc, cat, g)
	handler.Redis = rdb

	// Optional advisor
	if cfg.OpenAIKey != "" {
		handler.Advisor = advisor.New(svc, g, advisor.NewOpenAIChat(cfg.OpenAIKey))
	}

	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":    *port,
			"db":      *dbPath,
			"cache":   rdb != nil,
			"advisor": handler.Advisor != nil,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Server stopped")
}

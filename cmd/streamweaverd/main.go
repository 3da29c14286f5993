// StreamWeaver daemon - serves SSE/WebSocket event streams for long-running
// agentic workflows, fronted by an HTTP API for status, replay and closing
// streams.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/streamweaver/pkg/api"
	"github.com/codeready-toolchain/streamweaver/pkg/config"
	"github.com/codeready-toolchain/streamweaver/pkg/metrics"
	"github.com/codeready-toolchain/streamweaver/pkg/service"
	"github.com/codeready-toolchain/streamweaver/pkg/session"
	"github.com/codeready-toolchain/streamweaver/pkg/storage"
	"github.com/codeready-toolchain/streamweaver/pkg/stream"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "release")
	gin.SetMode(ginMode)

	log.Printf("Starting StreamWeaver")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	store, err := buildSessionStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing session store: %v", err)
		}
	}()
	log.Printf("✓ Session store ready (%s)", cfg.Session.Store)

	m := metrics.New(cfg.Metrics.Enabled, cfg.Metrics.Prefix, prometheus.DefaultRegisterer)
	log.Printf("✓ Metrics %s", enabledness(cfg.Metrics.Enabled))

	engine := stream.New(cfg, store, m)
	svc := service.New(cfg, store, engine, m)
	log.Println("✓ Stream engine and service ready")

	server := api.NewServer(cfg, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := server.Start(":" + httpPort); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		log.Fatalf("HTTP server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}
	if err := svc.Shutdown(); err != nil {
		log.Printf("Error during service shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}

func buildSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case config.SessionStorePostgres:
		dsn := os.Getenv(cfg.Session.Postgres.DSN)
		pool, err := storage.Open(ctx, storage.PoolConfig{
			DSN:          dsn,
			MaxOpenConns: int32(cfg.Session.Postgres.MaxOpenConns),
			MaxIdleConns: int32(cfg.Session.Postgres.MaxIdleConns),
		})
		if err != nil {
			return nil, err
		}
		return session.NewPostgresStore(pool, cfg.Session.Timeout, cfg.Session.CleanupInterval), nil
	default:
		return session.NewMemoryStore(cfg.Session.Timeout, cfg.Session.CleanupInterval), nil
	}
}

func enabledness(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

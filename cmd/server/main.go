/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the paper-supply HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment, then apply command-line flags
  2. Build the zap logger
  3. Open the SQLite store
  4. Pick the append lock: Redis when REDIS_ADDR is set, else in-process
  5. Load the catalog, or seed the ledger on first start
  6. Configure the HTTP router and start serving

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: HTTP_PORT or 8080)
  -db      SQLite database path (default: DB_PATH or paper-supply.db)
           Use ":memory:" for in-memory database
  -seed    Seed JSON path (default: SEED_PATH or the embedded catalog)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database and Redis connections
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/paper.db"

  # Run in memory with a custom catalog
  ./server -db=":memory:" -seed=./catalog.json

ENVIRONMENT:
  See config/config.go for every key.

SEE ALSO:
  - api/server.go: Router configuration
  - factory/seed.go: First-start seeding
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
	"github.com/warp/paper-supply/api"
	"github.com/warp/paper-supply/config"
	"github.com/warp/paper-supply/factory"
	"github.com/warp/paper-supply/generic"
	"github.com/warp/paper-supply/lock"
	"github.com/warp/paper-supply/logger"
	"github.com/warp/paper-supply/store/sqlite"
	"github.com/warp/paper-supply/workflow"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	// Flags override the environment
	port := flag.Int("port", cfg.Server.HTTPPort, "HTTP server port")
	dbPath := flag.String("db", cfg.Store.Path, "SQLite database path")
	seedPath := flag.String("seed", cfg.Seed.Path, "Seed JSON path (empty = embedded catalog)")
	flag.Parse()

	log := logger.New(cfg.Logger, cfg.IsDevelopment())
	defer log.Sync()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()
	log.Info("Opened SQLite store", zap.String("path", *dbPath))

	var locker generic.Locker = &generic.MutexLocker{}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Could not connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		locker = lock.NewRedisLocker(client, lock.WithTTL(cfg.Redis.LockTTL), lock.WithLogger(log))
		log.Info("Using Redis append lock", zap.String("addr", cfg.Redis.Addr))
	}
	ledger := generic.NewLedger(store, locker)

	sf := factory.NewSeedFactory()
	seed, err := sf.Load(factory.SeedOptions{
		Path:        *seedPath,
		Coverage:    cfg.Seed.Coverage,
		RandomSeed:  cfg.Seed.RandomSeed,
		InitialCash: cfg.Seed.InitialCash,
		StartDate:   cfg.Seed.StartDate,
	})
	if err != nil {
		log.Fatal("Failed to load seed", zap.Error(err))
	}
	catalog, seeded, err := sf.Bootstrap(context.Background(), store, ledger, seed)
	if err != nil {
		log.Fatal("Failed to bootstrap catalog", zap.Error(err))
	}
	log.Info("Catalog ready",
		zap.Bool("seeded", seeded),
		zap.Int("items", len(catalog.Items())),
		zap.Int("tracked", len(catalog.Records())))

	orchestrator := workflow.New(catalog, ledger, store, nil, log)
	handler := api.NewHandler(orchestrator, log)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.Server.CORSOrigins})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the milestone engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load TOML config (flags explicitly set win)
  3. Initialize SQLite store and schedule cache
  4. Create API handler, router and refresh scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: XDG data dir)
            Use ":memory:" for in-memory database
  -config   TOML config path (default: XDG config dir)
  -refresh  Refresh scheduler interval, 0 disables (default: 1m)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/milestones.db"

  # Run with in-memory database, no background refresh
  ./server -db=":memory:" -refresh=0

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Refresh scheduler
  - config/toml.go: Config file format
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/warp/milestone-engine/api"
	"github.com/warp/milestone-engine/cache"
	"github.com/warp/milestone-engine/config"
	"github.com/warp/milestone-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", config.DefaultDBPath(), "SQLite database path")
	configPath := flag.String("config", config.DefaultConfigPath(), "TOML config path")
	refresh := flag.Duration("refresh", time.Minute, "refresh scheduler interval (0 disables)")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	fileCfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !set["port"] && fileCfg.Server.Port != nil {
		*port = *fileCfg.Server.Port
	}
	if !set["db"] && fileCfg.Server.DB != nil {
		*dbPath = *fileCfg.Server.DB
	}
	if !set["refresh"] {
		if *refresh, err = fileCfg.Engine.Refresh(*refresh); err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
	}
	bucket, err := fileCfg.Engine.Bucket(time.Minute)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	if *dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cache.New(bucket))

	// Background refresh
	scheduler := api.NewRefreshScheduler(handler)
	scheduler.CheckInterval = *refresh
	scheduler.Enabled = *refresh > 0
	handler.Scheduler = scheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler, fileCfg.Server.CORSOrigins...)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (db=%s)", *port, *dbPath)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

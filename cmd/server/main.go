/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the insight-engine server: loads configuration,
  opens the SQLite cache, wires the Odoo fetcher, sync manager and
  recalculator into the API handler, and runs the HTTP server with
  graceful shutdown.

COMMAND-LINE FLAGS:
  -config  Path to the YAML config file (default: config.yaml; a missing
           file runs on defaults)
  -listen  Override the configured listen address
  -db      Override the configured SQLite cache path
           Use ":memory:" for an in-memory cache

ENVIRONMENT:
  ODOO_URL, ODOO_DB, ODOO_USERNAME, ODOO_API_KEY override the source
  section of the config file so credentials stay out of checked-in files.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  in-flight requests, close the cache database, exit.

SEE ALSO:
  - config/config.go: Configuration layout and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian/insight-engine/api"
	"github.com/meridian/insight-engine/config"
	"github.com/meridian/insight-engine/revenue"
	"github.com/meridian/insight-engine/source/odoo"
	"github.com/meridian/insight-engine/store/sqlite"
	"github.com/meridian/insight-engine/syncer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	listen := flag.String("listen", "", "listen address override")
	dbPath := flag.String("db", "", "SQLite cache path override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if cfg.Source.URL == "" {
		log.Printf("Warning: no ERP source configured; refreshes will serve cached data only")
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open cache database: %v", err)
	}
	defer store.Close()

	fetcher := odoo.New(odoo.Config{
		URL:      cfg.Source.URL,
		Database: cfg.Source.Database,
		Username: cfg.Source.Username,
		APIKey:   cfg.Source.APIKey,
	})

	manager := syncer.New(fetcher, store, syncer.Config{
		StalenessThreshold: cfg.Sync.StalenessThreshold.Std(),
		OverlapWindow:      cfg.Sync.OverlapWindow.Std(),
	})
	recalc := revenue.NewRecalculator(store)

	handler := api.NewHandler(store, manager, recalc)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // full recomputes run inline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s (cache: %s)", cfg.Listen, cfg.Database.Path)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

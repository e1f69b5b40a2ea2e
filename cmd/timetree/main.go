// timetree server
// Serves the version tree API, change event feed and timeline diagrams
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/relmap/timetree/internal/config"
	"github.com/relmap/timetree/internal/events"
	"github.com/relmap/timetree/internal/logger"
	"github.com/relmap/timetree/internal/metrics"
	"github.com/relmap/timetree/internal/server"
	"github.com/relmap/timetree/pkg/persist"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg := config.Load()

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	log := logger.GetGlobalLogger()
	log.LogServerStart(cfg.Port, cfg.DBPath)

	store, err := persist.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open store").Err(err).Send()
	}
	defer store.Close()

	m := metrics.NewMetrics()
	bus := events.NewBus()

	srv, err := server.New(log, m, bus, store)
	if err != nil {
		log.Fatal("Failed to create server").Err(err).Send()
	}

	obs := server.NewObservabilityServer(cfg.MetricsPort, log)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("Observability server stopped").Err(err).Send()
		}
	}()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigins},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	api := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler.Handler(srv.Routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.LogServerShutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		obs.Shutdown(ctx)
		api.Shutdown(ctx)
	}()

	log.LogServerReady(cfg.Port)
	if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Failed to serve").Err(err).Send()
	}
}

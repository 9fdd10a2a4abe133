// Package main is the entry point for the MarketPl.ai ingestion and
// backtesting service: loads configuration, connects to Mongo, wires
// every component, and serves the HTTP API until a shutdown signal
// arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikolasl00/marketplai/internal/config"
	"github.com/nikolasl00/marketplai/internal/database"
	"github.com/nikolasl00/marketplai/internal/importregistry"
	"github.com/nikolasl00/marketplai/internal/ingestion"
	"github.com/nikolasl00/marketplai/internal/logger"
	"github.com/nikolasl00/marketplai/internal/pricestore"
	"github.com/nikolasl00/marketplai/internal/server"
	"github.com/nikolasl00/marketplai/internal/symbolindex"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("app", cfg.AppName).Msg("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(database.Config{URI: cfg.MongoURI, DBName: cfg.MongoDBName}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	defer db.Close(context.Background())

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure indexes")
	}

	prices := pricestore.New(db.StockPrices, log)
	imports := importregistry.New(db.Imports, db.StockPrices, prices, log)

	if err := imports.RecoverOrphans(ctx); err != nil {
		log.Error().Err(err).Msg("orphan recovery failed")
	}

	cache := symbolindex.New(prices)
	pipeline := ingestion.New(prices, imports, cache, cfg.CSVChunkSize, log)
	executor := ingestion.NewExecutor()
	bus := ingestion.NewBus()

	deps := server.Dependencies{
		DB:       db,
		Prices:   prices,
		Imports:  imports,
		Cache:    cache,
		Pipeline: pipeline,
		Executor: executor,
		Bus:      bus,
	}

	srv := server.New(server.Config{Port: cfg.Port, AllowedOrigins: cfg.AllowedOrigins}, log, deps)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	executor.Shutdown()
	log.Info().Msg("server stopped")
}

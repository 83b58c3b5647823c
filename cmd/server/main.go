// Adama Tourism ML Engine - Tourism Recommendation Service
// Copyright 2026 Adama Tourism
// SPDX-License-Identifier: MIT
// https://github.com/adama-tourism/ml-engine

// Command server runs the tourism ML recommendation service: it ingests
// catalog and interaction data from the backend API, trains collaborative
// and content-based models, and serves recommendation queries over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/adama-tourism/ml-engine/internal/api"
	"github.com/adama-tourism/ml-engine/internal/artifacts"
	"github.com/adama-tourism/ml-engine/internal/config"
	"github.com/adama-tourism/ml-engine/internal/ingest"
	"github.com/adama-tourism/ml-engine/internal/logging"
	"github.com/adama-tourism/ml-engine/internal/recommend"
	"github.com/adama-tourism/ml-engine/internal/similarity"
	"github.com/adama-tourism/ml-engine/internal/trainer"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Service failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logger.Info().
		Str("backend_url", cfg.Backend.URL).
		Str("models_dir", cfg.Storage.Dir).
		Int("port", cfg.Server.Port).
		Msg("Starting ML engine")

	store, err := artifacts.NewStore(artifacts.Config{Dir: cfg.Storage.Dir})
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	cf := recommend.NewEngine(store, recommend.ALSConfig{
		NumFactors:     cfg.Training.NumFactors,
		NumIterations:  cfg.Training.Epochs,
		Regularization: cfg.Training.Regularization,
		Alpha:          cfg.Training.Alpha,
	}, logger)
	sim := similarity.NewEngine(store, similarity.DefaultMaxFeatures, logger)

	client := ingest.NewClient(ingest.Config{
		URL:                  cfg.Backend.URL,
		Secret:               cfg.Backend.Secret,
		ItemsPageSize:        cfg.Backend.ItemsPageSize,
		InteractionsPageSize: cfg.Backend.InteractionsPageSize,
		MaxPages:             cfg.Backend.MaxPages,
		RequestTimeout:       cfg.Backend.RequestTimeout,
		RequestsPerSecond:    cfg.Backend.RequestsPerSecond,
	}, logger)

	orch := trainer.NewOrchestrator(client, cf, sim, cfg.Training.JobTimeout, logger)

	handler := api.NewHandler(cf, sim, orch, client, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg.Security, handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

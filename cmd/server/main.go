package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cropwise-go/internal/api"
	"cropwise-go/internal/config"
	"cropwise-go/internal/dataset"
	"cropwise-go/internal/history"
	"cropwise-go/internal/logging"
	"cropwise-go/internal/service"
	"cropwise-go/internal/state"
	"cropwise-go/internal/store"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Services
	catalog, err := service.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load crop catalog")
	}

	var artifacts store.ArtifactStore
	if cfg.Models.Persist {
		artifacts, err = store.New(cfg.Models)
		if err != nil {
			logging.Fatal().Err(err).Str("backend", cfg.Models.Backend).Msg("Failed to open artifact store")
		}
		defer artifacts.Close()
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.History.Path).Msg("Failed to open history database")
		}
		defer hist.Close()
	}

	loader := dataset.NewLoader(cfg.Database.PostgresDSN)
	defer loader.Close()

	appState := state.New()
	manager := service.NewManager(*cfg, loader, artifacts, appState)
	if err := manager.Load(ctx); err != nil {
		// the server still starts; affected endpoints answer 503
		logging.Warn().Err(err).Msg("Some models failed to load")
	}

	// Initialize Handler
	handler := api.NewHandler(appState, manager, service.NewPlanner(catalog), hist, version)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg.Server, handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", srv.Addr).
			Strs("cors_origins", cfg.Server.CORSOrigins).
			Bool("history", hist != nil).
			Msg("Starting Crop-Wise API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

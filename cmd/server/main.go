package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/emoteam/emopipe/internal/blob"
	"github.com/emoteam/emopipe/internal/config"
	"github.com/emoteam/emopipe/internal/dsp"
	"github.com/emoteam/emopipe/internal/features"
	"github.com/emoteam/emopipe/internal/fetch"
	"github.com/emoteam/emopipe/internal/httpapp"
	"github.com/emoteam/emopipe/internal/inference"
	"github.com/emoteam/emopipe/internal/logger"
	"github.com/emoteam/emopipe/internal/model"
	"github.com/emoteam/emopipe/internal/pipeline"
	"github.com/emoteam/emopipe/internal/store"
	"github.com/emoteam/emopipe/internal/transcode"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Processing parameters: mel transform, descriptor schema, modality
	// layout. Loaded once and shared by reference.
	params, err := config.LoadParams(cfg.ParamsPath)
	if err != nil {
		appLogger.Error("Failed to load params", "error", err)
		os.Exit(1)
	}

	// Initialize DB
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize artifact store
	blobStore, err := blob.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		appLogger.Error("Failed to init artifact store", "error", err)
		os.Exit(1)
	}

	// Descriptor normalization vectors, exported by the training pipeline.
	stats, err := features.LoadStats(params.Features.MeanPath, params.Features.StdPath, params.Features.SelectedPath)
	if err != nil {
		appLogger.Error("Failed to load feature stats", "error", err)
		os.Exit(1)
	}

	// Pipeline stages
	fetcher := fetch.NewHTTPFetcher(nil)
	transcoder := transcode.NewWAVTranscoder("")
	renderer := dsp.NewRenderer(params.Spectrogram)
	extractor := features.NewSMILExtractor(params.Features, stats, "")

	orchestrator := pipeline.NewOrchestrator(blobStore, db, fetcher, transcoder, renderer, extractor, appLogger)

	// Inference engine with the lazily loaded shared model
	loader := model.NewLoader(params.Model.WeightsPath)
	engine := inference.NewEngine(blobStore, loader, params.Model, appLogger)

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := httpapp.NewHandler(orchestrator, engine, blobStore, db, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server exiting")
}

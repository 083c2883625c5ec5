package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arenakit/competition-system/brackets"
	"github.com/arenakit/competition-system/config"
	"github.com/arenakit/competition-system/db"
	"github.com/arenakit/competition-system/handlers"
	"github.com/arenakit/competition-system/repositories"
	api "github.com/arenakit/competition-system/routes"
	"github.com/arenakit/competition-system/services"
	"github.com/arenakit/competition-system/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	var archiver storage.FileUploader
	if cfg.R2Configured() {
		archiver, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize bracket archiver", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("bracket archiver initialized")
	} else {
		logger.Warn("R2 not configured, bracket archival disabled")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("websocket hub started")

	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	ladderRepo := repositories.NewPostgresLadderRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	competitorRepo := repositories.NewPostgresCompetitorRepository(dbConn)
	logger.Info("repositories initialized")

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.SMTPConfigured() {
		notifier = services.NewEmailService(cfg, competitorRepo, logger)
	} else {
		logger.Warn("SMTP not configured, notifications disabled")
	}

	ladderService := services.NewLadderService(ladderRepo)
	tournamentService := services.NewTournamentService(
		repositories.NewTxBeginner(dbConn),
		tournamentRepo,
		matchRepo,
		wsHub,
		archiver,
		notifier,
		nil, // time-seeded rng
		logger,
	)
	progressionService := services.NewProgressionService(
		ladderService,
		tournamentService,
		competitorRepo,
		logger,
	)
	matchService := services.NewMatchService(
		matchRepo,
		progressionService,
		notifier,
		cfg.PublicURL,
		logger,
	)
	logger.Info("services initialized")

	matchHandler := handlers.NewMatchHandler(matchService)
	ladderHandler := handlers.NewLadderHandler(ladderService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		[]byte(cfg.JWTSecretKey),
		matchHandler,
		ladderHandler,
		tournamentHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

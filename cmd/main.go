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

	"github.com/go-chi/chi/v5"
	"github.com/mbessolov/tourney-engine/config"
	"github.com/mbessolov/tourney-engine/db"
	"github.com/mbessolov/tourney-engine/handlers"
	"github.com/mbessolov/tourney-engine/middleware"
	"github.com/mbessolov/tourney-engine/realtime"
	"github.com/mbessolov/tourney-engine/repositories"
	api "github.com/mbessolov/tourney-engine/routes"
	"github.com/mbessolov/tourney-engine/services"
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
		}
	}()
	logger.Info("database connection established")

	// WebSocket hub для live-обновлений сеток и результатов
	hub := realtime.NewHub(logger)
	go hub.Run()

	// Репозитории
	transactor := repositories.NewTransactor(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	roundRobinRepo := repositories.NewPostgresRoundRobinRepository(dbConn)
	knockoutRepo := repositories.NewPostgresKnockoutRepository(dbConn)
	leaderboardRepo := repositories.NewPostgresLeaderboardRepository(dbConn)

	// Сервисы
	eventService := services.NewEventService(transactor, eventRepo, hub, logger)
	roundRobinService := services.NewRoundRobinService(transactor, eventRepo, roundRobinRepo, hub, logger)
	knockoutService := services.NewKnockoutService(transactor, eventRepo, knockoutRepo, hub, logger)
	leaderboardService := services.NewLeaderboardService(transactor, eventRepo, leaderboardRepo, hub, logger)
	logger.Info("services initialized")

	// Обработчики HTTP
	eventHandler := handlers.NewEventHandler(eventService)
	roundRobinHandler := handlers.NewRoundRobinHandler(roundRobinService)
	bracketHandler := handlers.NewBracketHandler(knockoutService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.CORSAllowedOrigins,
		middleware.Authenticator(cfg.JWTSecretKey),
		eventHandler,
		roundRobinHandler,
		bracketHandler,
		leaderboardHandler,
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
}

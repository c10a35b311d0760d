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

	"github.com/Dosada05/shared-brackets/brackets"
	"github.com/Dosada05/shared-brackets/config"
	"github.com/Dosada05/shared-brackets/db"
	"github.com/Dosada05/shared-brackets/handlers"
	"github.com/Dosada05/shared-brackets/metrics"
	"github.com/Dosada05/shared-brackets/middleware"
	"github.com/Dosada05/shared-brackets/repositories"
	api "github.com/Dosada05/shared-brackets/routes"
	"github.com/Dosada05/shared-brackets/services"
	"github.com/Dosada05/shared-brackets/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("demo", cfg.Demo), slog.Bool("local", cfg.Local))

	// Подключение к базе данных
	dbConn, err := db.Connect(context.Background(), db.Options{
		DSN:          cfg.DatabaseURL,
		PingTimeout:  5 * time.Second,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
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

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.ApplySchema(schemaCtx, cfg.DatabaseURL)
	cancelSchema()
	if err != nil {
		logger.Error("failed to apply database schema", slog.Any("error", err))
		os.Exit(1)
	}

	// Загрузчик обложек (Cloudflare R2) опционален
	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, cover uploads are disabled")
	}

	registry := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(registry)

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger, wsMetrics)
	go wsHub.Run(appCtx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	itemRepo := repositories.NewPostgresItemRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	pairingRepo := repositories.NewPostgresPairingRepository(dbConn)
	voteRepo := repositories.NewPostgresVoteRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	notifier := services.NewLogNotifier(logger, cfg.AppURL)
	bracketService := services.NewBracketService(dbConn, bracketRepo, itemRepo, userRepo, membershipRepo, uploader, notifier, logger)
	itemService := services.NewItemService(itemRepo, userRepo)
	userService := services.NewUserService(userRepo)
	coverService := services.NewCoverService(bracketRepo, uploader, logger)
	tournamentService := services.NewTournamentService(dbConn, bracketRepo, itemRepo, userRepo, pairingRepo, voteRepo, logger)
	logger.Info("Services initialized")

	tickets := middleware.NewTicketIssuer(cfg.SocketSecretKey, middleware.DefaultTicketTTL)
	gateway := handlers.NewGateway(wsHub, brackets.NewSessionRegistry(), handlers.GatewayServices{
		Brackets:    bracketService,
		Items:       itemService,
		Users:       userService,
		Tournaments: tournamentService,
	}, wsMetrics, logger)

	// Инициализация обработчиков HTTP
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Brackets: handlers.NewBracketHandler(bracketService, tickets, handlers.SocketAddressConfig{
			Demo:  cfg.Demo,
			Local: cfg.Local,
			Port:  cfg.ServerPort,
		}, logger),
		Covers:    handlers.NewCoverHandler(coverService, gateway, logger),
		WebSocket: handlers.NewWebSocketHandler(wsHub, tickets, gateway, logger),
		Health:    handlers.NewHealthHandler(dbConn),
		Metrics:   metrics.Handler(registry),
	}, tickets, cfg.AllowedOrigins)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stopApp()
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		// Shutdown не ждёт hijacked websocket-соединения, их закрывает hub
		stopApp()
		<-wsHub.Done()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
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

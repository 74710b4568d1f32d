package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/api"
	"github.com/Gopi7989/agri-connect/internal/api/handlers"
	"github.com/Gopi7989/agri-connect/internal/api/middleware"
	"github.com/Gopi7989/agri-connect/internal/auth"
	"github.com/Gopi7989/agri-connect/internal/cache"
	"github.com/Gopi7989/agri-connect/internal/config"
	"github.com/Gopi7989/agri-connect/internal/db"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/notify"
	"github.com/Gopi7989/agri-connect/internal/services"
	"github.com/Gopi7989/agri-connect/internal/tasks"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agriconnect",
		Short:         "Agri-connect marketplace API",
		Long:          "Agri-connect links farmers and buyers: listings, inquiries and bids over a JSON API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(modeAll)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   modeAPI,
			Short: "Serve the HTTP API only",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(modeAPI)
			},
		},
		&cobra.Command{
			Use:   modeWorker,
			Short: "Run the notification worker only",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(modeWorker)
			},
		},
		&cobra.Command{
			Use:   modeAll,
			Short: "Serve the HTTP API and run the worker (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(modeAll)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("agriconnect version %s\n", version)
			},
		},
	)
	return cmd
}

func run(mode string) error {
	switch mode {
	case modeAPI, modeWorker, modeAll:
	default:
		return fmt.Errorf("invalid run mode: %s", mode)
	}

	cfg, err := config.Load(mode)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(cfg.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			logger.Error("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.EnsureIndexes(indexCtx, mongoDb)
	cancelIndex()
	if err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			logger.Error("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenService(cfg.JwtSecret, cfg.JwtTTL)

	taskClient := tasks.NewClient(redisClient)
	defer func() { _ = taskClient.Close() }()

	statsCache := cache.NewJSONCache(redisClient, "stats:")
	userService := services.NewUserService(mongoDb, hasher, tokens)
	listingService := services.NewListingService(mongoDb, cfg, statsCache)
	inquiryService := services.NewInquiryService(mongoDb, listingService, tasks.NewNotifier(taskClient))
	statsService := services.NewStatsService(mongoDb, statsCache, cfg.StatsCacheTTL)

	logger.Info("Starting application", zap.String("mode", mode), zap.String("version", version))

	// Worker starts before any listener.
	var workerSrv *asynq.Server
	if mode == modeWorker || mode == modeAll {
		sender, err := notify.Build(cfg.MockServices, redisClient, cfg.LogNotificationsPath)
		if err != nil {
			return fmt.Errorf("failed to initialize notification senders: %w", err)
		}
		processor := tasks.NewTaskProcessor(cfg, sender, inquiryService)
		var mux *asynq.ServeMux
		workerSrv, mux = tasks.SetupServer(redisClient, processor)
		// Start, not Run: signals are handled below.
		if err := workerSrv.Start(mux); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		logger.Info("Notification worker started", zap.Int("senders", sender.Len()))
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 3)
	shutdownChan := make(chan struct{}, 1)

	// Service API runs in every mode.
	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(cfg, redisClient, shutdownChan),
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
	}
	listen(&wg, serveErr, "Service API", serviceSrv)

	var mainApiSrv *http.Server
	var rateLimiter *middleware.RateLimiterMiddleware

	if mode == modeAPI || mode == modeAll {
		rateLimiter = middleware.NewRateLimiterMiddleware(cfg.RateLimitRefillRate, cfg.RateLimitBucketSize)
		router := api.SetupRouter(cfg, api.Dependencies{
			Users:       userService,
			Listings:    listingService,
			Inquiries:   inquiryService,
			Stats:       statsService,
			Tokens:      tokens,
			RateLimiter: rateLimiter,
			Checks: map[string]handlers.Pinger{
				"mongo": func(ctx context.Context) error { return db.Ping(ctx, mongoDb) },
				"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			},
		})
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           router,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: cfg.HTTPReadTimeout,
			WriteTimeout:      cfg.HTTPWriteTimeout,
		}
		listen(&wg, serveErr, "Main API", mainApiSrv)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
	case <-shutdownChan:
		logger.Info("Shutdown requested via Service API")
	case runErr = <-serveErr:
		logger.Error("Server failed, shutting down", zap.Error(runErr))
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("Main API server shutdown error", zap.Error(err))
		}
	}
	if rateLimiter != nil {
		rateLimiter.Stop()
	}
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("Service API server shutdown error", zap.Error(err))
	}
	if workerSrv != nil {
		workerSrv.Shutdown()
	}

	wg.Wait()
	logger.Info("Server gracefully stopped")
	return runErr
}

func listen(wg *sync.WaitGroup, serveErr chan<- error, name string, srv *http.Server) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info(name+" listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%s: %w", name, err)
		}
	}()
}

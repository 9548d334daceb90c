package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/fileflowhq/fileflow-be/internal/api/handler"
	"github.com/fileflowhq/fileflow-be/internal/api/router"
	"github.com/fileflowhq/fileflow-be/internal/api/ws"
	"github.com/fileflowhq/fileflow-be/internal/config"
	"github.com/fileflowhq/fileflow-be/internal/engine"
	"github.com/fileflowhq/fileflow-be/internal/events"
	"github.com/fileflowhq/fileflow-be/internal/files"
	"github.com/fileflowhq/fileflow-be/internal/ops"
	"github.com/fileflowhq/fileflow-be/internal/storage"
	"github.com/fileflowhq/fileflow-be/shared/blobstore"
	"github.com/fileflowhq/fileflow-be/shared/logger"
	"github.com/fileflowhq/fileflow-be/shared/postgresql"
	"github.com/fileflowhq/fileflow-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// runCtx owns every background goroutine; cancelling it is the first
	// step of shutdown.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize blob storage
	blobs, err := initBlobStore(runCtx, &cfg.Storage, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	appLogger.Info("Blob storage ready", slog.String("driver", cfg.Storage.Driver))

	// Initialize RabbitMQ client when enabled; job events then fan out to
	// the broker as well as to connected websocket clients.
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		appLogger.Info("RabbitMQ connection established")
	}

	// Websocket hub for job event streaming
	hub := ws.NewHub(appLogger.Logger)
	go hub.Run(runCtx)

	sink := events.Fanout{hub}
	if rabbitClient != nil {
		sink = append(sink, events.NewBrokerPublisher(rabbitClient))
	}

	// Wire stores, the file manager, the job engine and its processors
	jobStore := storage.NewJobStore(dbClient, appLogger.Logger)
	fileStore := storage.NewFileStore(dbClient)

	fileManager := files.NewManager(fileStore, blobs, cfg.Storage.TempDir, appLogger.Logger)

	jobEngine := engine.New(jobStore, fileManager, sink, cfg.Jobs.MaxConcurrentPerUser, appLogger.Logger)

	registry := ops.NewRegistry(fileManager, ops.Tools{
		FFmpeg:    cfg.Jobs.Tools.FFmpeg,
		Magick:    cfg.Jobs.Tools.Magick,
		QPDF:      cfg.Jobs.Tools.QPDF,
		Tesseract: cfg.Jobs.Tools.Tesseract,
	}, appLogger.Logger)

	// Periodically drop old terminal jobs
	if cfg.Jobs.Cleanup.Enabled {
		go runCleanup(runCtx, jobEngine, cfg.Jobs.Cleanup, appLogger.Logger)
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, dbClient, jobEngine, fileManager, registry, hub)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Stop background goroutines first so the hub closes its websocket
	// connections and the cleanup loop exits.
	runCancel()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initBlobStore initializes the configured blob storage driver
func initBlobStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (blobstore.Store, error) {
	switch cfg.Driver {
	case "local":
		return blobstore.NewLocalStore(cfg.Root, logger)
	case "minio":
		return blobstore.NewMinIOStore(ctx, &blobstore.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			TempDir:   cfg.TempDir,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		BindingKey:         cfg.BindingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(
	cfg *config.Config,
	logger *slog.Logger,
	dbClient *postgresql.Client,
	jobEngine *engine.Engine,
	fileManager *files.Manager,
	registry *ops.Registry,
	hub *ws.Hub,
) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:         logger,
		DBClient:       dbClient,
		Engine:         jobEngine,
		Files:          fileManager,
		Registry:       registry,
		Hub:            hub,
		JWTSecret:      cfg.Auth.JWTSecret,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}

// runCleanup drops terminal jobs older than the configured retention on a
// fixed interval until the context is cancelled.
func runCleanup(ctx context.Context, jobEngine *engine.Engine, cfg config.CleanupConfig, logger *slog.Logger) {
	maxAge := time.Duration(cfg.MaxAgeDays) * 24 * time.Hour

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := jobEngine.CleanupTerminal(ctx, maxAge); err != nil {
				logger.Error("Job cleanup failed", slog.String("error", err.Error()))
			}
		}
	}
}

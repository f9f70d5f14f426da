package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/locklog/internal/accesslog"
	"github.com/redmonkez12/locklog/internal/auth"
	"github.com/redmonkez12/locklog/internal/card"
	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/database"
	"github.com/redmonkez12/locklog/internal/device"
	"github.com/redmonkez12/locklog/internal/email"
	httpServer "github.com/redmonkez12/locklog/internal/http"
	"github.com/redmonkez12/locklog/internal/ingest"
	"github.com/redmonkez12/locklog/internal/lock"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/project"
	"github.com/redmonkez12/locklog/internal/ratelimit"
	"github.com/redmonkez12/locklog/internal/session"
	"github.com/redmonkez12/locklog/internal/storage"
	"github.com/redmonkez12/locklog/internal/user"
	"github.com/redmonkez12/locklog/internal/validation"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize database connection
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(context.Background(), db.DB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	secureCookies := !cfg.Server.IsDevelopment()
	sessionStore, err := session.NewRedisStore(cfg.Redis, cfg.Session, secureCookies)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer sessionStore.Close()

	files, err := storage.New(context.Background(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	deviceTokens, err := device.NewTokenService(cfg.Auth.PasetoKey, cfg.Auth.DeviceTokenDuration)
	if err != nil {
		return fmt.Errorf("failed to initialize device tokens: %w", err)
	}

	// Initialize repositories
	timeout := cfg.Database.OperationTimeout
	userRepo := user.NewRepository(db, timeout)
	cardRepo := card.NewRepository(db, timeout)
	projectRepo := project.NewRepository(db, timeout)
	lockRepo := lock.NewRepository(db, timeout)
	logRepo := accesslog.NewRepository(db, timeout)

	validator := validation.New(cfg.Auth.RequiredEmailMarker)
	rateLimiter := ratelimit.NewLimiter(redisClient)
	emailService := email.NewService(cfg.Email, logger)

	// Initialize services
	authService := auth.NewService(userRepo, emailService, validator, logger, cfg.Email.AppURL)
	projectService := project.NewService(projectRepo, files, validator, logger)
	logService := accesslog.NewService(logRepo, cardRepo, projectRepo, validator, logger).
		WithReferenceChecks(cfg.AccessLog.VerifyReferences)

	// Device events over MQTT are optional
	if cfg.MQTT.Enabled {
		sub, err := ingest.Connect(cfg.MQTT, logService, lockRepo, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT ingestion: %w", err)
		}
		defer sub.Close()
	}

	// Initialize HTTP handlers
	handlers := httpServer.Handlers{
		Auth:      auth.NewHandler(authService, rateLimiter, logger),
		Projects:  project.NewHandler(projectService),
		Locks:     lock.NewHandler(lockRepo, cardRepo, deviceTokens, validator),
		Cards:     card.NewHandler(cardRepo, validator),
		AccessLog: accesslog.NewHandler(logService),
		DeviceAPI: accesslog.NewAPIHandler(logService),
	}
	sessions := session.NewManager(sessionStore, cfg.Session.Name, userRepo)

	// Initialize router
	router := httpServer.NewRouter(cfg, handlers, sessions, deviceTokens, db, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// let queued reset and confirmation mails go out
		authService.Wait()
	}

	return nil
}

// initDB initializes the database connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

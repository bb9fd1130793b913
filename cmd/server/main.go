package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-server/internal/clients"
	"story-server/internal/config"
	"story-server/internal/database"
	"story-server/internal/handler"
	"story-server/internal/ingest"
	"story-server/internal/interfaces"
	"story-server/internal/logger"
	"story-server/internal/messaging"
	"story-server/internal/middleware"
	"story-server/internal/service"
	"story-server/migrations"
	pkgdatabase "story-server/pkg/database"
	"story-server/pkg/migration"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// --- External Connections ---
	pgPool, err := pkgdatabase.NewPool(ctx, pkgdatabase.Config{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		MaxConnIdle: cfg.DBIdleTimeout,
	})
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, pgPool)
	if err := migrator.Up(ctx); err != nil {
		zap.L().Fatal("Failed to apply migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	var mediaTasks interfaces.MediaTaskPublisher
	var mqConn *amqp091.Connection
	if cfg.RabbitMQURL != "" {
		mqConn, err = amqp091.Dial(cfg.RabbitMQURL)
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()

		publisher, err := messaging.NewRabbitMQMediaPublisher(mqConn)
		if err != nil {
			zap.L().Fatal("Failed to create media task publisher", zap.Error(err))
		}
		defer publisher.Close()
		mediaTasks = publisher
		zap.L().Info("Connected to RabbitMQ")
	} else {
		zap.L().Info("RabbitMQ URL not set, media task publishing disabled")
	}

	var resolver interfaces.MediaResolver
	if cfg.MediaServiceURL != "" {
		resolver = clients.NewHTTPMediaResolverClient(cfg.MediaServiceURL, log)
	} else {
		zap.L().Info("Media service URL not set, asset tag resolution disabled")
	}

	// --- Dependency Injection ---
	storyRepo := database.NewPgStoryRepository(log)
	nodeRepo := database.NewPgStoryNodeRepository(log)
	choiceRepo := database.NewPgStoryChoiceRepository(log)
	sessionRepo := database.NewRedisSessionRepository(redisClient, log)

	builder := ingest.NewBuilder(log)
	synchronizer := ingest.NewSynchronizer(storyRepo, nodeRepo, choiceRepo, pgPool, log)

	ingestSvc := service.NewIngestService(builder, synchronizer, storyRepo, nodeRepo, choiceRepo, pgPool, resolver, mediaTasks, log)
	readerSvc := service.NewReaderService(storyRepo, nodeRepo, choiceRepo, sessionRepo, pgPool, nil, log)

	storyHandler := handler.NewStoryHandler(ingestSvc, readerSvc, cfg.JWTSecret, log)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLoggingMiddleware(log))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	storyHandler.RegisterRoutes(router)

	// Prometheus middleware goes on after route registration so it sees the
	// final route table.
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.Port))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/multipost/configs"
	"github.com/maheshrc27/multipost/internal/api/handlers"
	"github.com/maheshrc27/multipost/internal/api/middleware"
	job "github.com/maheshrc27/multipost/internal/jobs"
	"github.com/maheshrc27/multipost/internal/publisher"
	"github.com/maheshrc27/multipost/internal/queue"
	"github.com/maheshrc27/multipost/internal/repository"
	"github.com/maheshrc27/multipost/internal/service"
	"github.com/maheshrc27/multipost/pkg/utils"
	"github.com/redis/go-redis/v9"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.LoadConfig()
	logs := utils.SetupLogging(utils.LoggerOptions{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if envErr != nil {
		logs.Warn("Failed to load .env file", "error", envErr)
	}

	dsn := cfg.PostgresURI
	if cfg.DatabaseDriver == repository.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	db, err := repository.OpenDatabase(cfg.DatabaseDriver, dsn)
	if err != nil {
		logs.Fatal("Failed to connect to database", "error", err)
	}
	if err := repository.RunMigrations(db, cfg.DatabaseDriver); err != nil {
		closeDB(db)
		logs.Fatal("Failed to run migrations", "error", err)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postRepo := repository.NewPostRepository(db)
	postPlatformRepo := repository.NewPostPlatformRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	contentRepo := repository.NewContentRepository(db)

	var store service.ObjectStore
	if cfg.R2.AccountID != "" {
		r2Service, err := service.NewR2Service(rootCtx, cfg.R2)
		if err != nil {
			logs.Fatal("Failed to configure R2 storage", "error", err)
		}
		store = r2Service
	} else {
		logs.Warn("R2 storage is not configured, uploads are disabled")
	}

	credentialService := service.NewCredentialService(cfg.SecretKey, socialAccountRepo)
	contentService := service.NewContentService(contentRepo, store)
	registry := newRegistry(cfg.Publishing)
	platformService := service.NewPlatformService(socialAccountRepo, registry)

	publishingService := service.NewPublishingService(postRepo, postPlatformRepo, credentialService, contentService, registry, service.PublishingOptions{
		Concurrency:   cfg.Scheduler.Concurrency,
		TargetTimeout: cfg.Scheduler.TargetTimeout,
	})

	var (
		enqueuer       service.PublishEnqueuer
		locker         job.TickLocker
		asynqClient    *asynq.Client
		asynqInspector *asynq.Inspector
		asynqServer    *asynq.Server
		redisClient    *redis.Client
	)
	if cfg.RedisURI != "" {
		redisOpts, err := redisOptions(cfg.RedisURI)
		if err != nil {
			logs.Fatal("Invalid REDIS_URI", "error", err)
		}
		redisClient = redis.NewClient(redisOpts)
		locker = job.NewRedisTickLocker(redisClient)

		redisConn := asynq.RedisClientOpt{
			Addr:     redisOpts.Addr,
			Username: redisOpts.Username,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		}
		asynqClient = asynq.NewClient(redisConn)
		asynqInspector = asynq.NewInspector(redisConn)
		enqueuer = queue.NewEnqueuer(asynqClient, asynqInspector)

		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency:     10,
			ShutdownTimeout: 30 * time.Second,
		})
		worker := queue.NewWorker(publishingService)
		logs.Info("Starting the Asynq server...")
		if err := asynqServer.Start(worker.Mux()); err != nil {
			logs.Fatal("Could not start Asynq server", "error", err)
		}
	} else {
		logs.Warn("REDIS_URI is not set, publish-now runs inline and ticks are not locked")
	}

	postService := service.NewPostService(db, postRepo, postPlatformRepo, socialAccountRepo, contentRepo,
		credentialService, registry, publishingService, enqueuer, service.PostServiceOptions{
			DefaultMaxRetries: cfg.Publishing.DefaultMaxRetries,
		})

	scheduler := job.NewPublishScheduler(rootCtx, publishingService, cfg.Scheduler, locker)
	if err := scheduler.Start(); err != nil {
		logs.Fatal("Failed to start publish scheduler", "error", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logs.Error("Request failed", "error", err, "path", c.Path())
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "database unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	handlers.RegisterRoutes(api,
		handlers.NewPostHandler(postService),
		handlers.NewContentHandler(contentService),
		handlers.NewPlatformHandler(platformService),
	)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logs.Fatal("Failed to start server", "error", err)
		}
	}()
	logs.Info("Server is running", "addr", "http://localhost:"+cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logs.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		logs.Error("Failed to shut down server", "error", err)
	}

	// ticks get a grace period, then are interrupted and must still record
	// their outcomes before the database goes away
	if !scheduler.Shutdown(cancel, 30*time.Second, 15*time.Second) {
		logs.Warn("Publish scheduler did not stop in time")
	}

	if asynqServer != nil {
		// blocks until running handlers return or ShutdownTimeout passes
		asynqServer.Shutdown()
	}
	if asynqClient != nil {
		asynqClient.Close()
		asynqInspector.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	closeDB(db)
	logs.Info("Server shutdown complete.")
}

func newRegistry(cfg config.Publishing) *publisher.Registry {
	httpClient := &http.Client{Timeout: 15 * time.Minute}
	poller := publisher.Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts}

	return publisher.NewRegistry(
		publisher.WithRateLimit(publisher.NewFacebookPublisher(cfg.GraphBaseURL, httpClient), cfg.RatePerMinute),
		publisher.WithRateLimit(publisher.NewInstagramPublisher(cfg.InstagramBaseURL, httpClient, poller), cfg.RatePerMinute),
		publisher.WithRateLimit(publisher.NewTiktokPublisher(cfg.TiktokBaseURL, httpClient, poller), cfg.RatePerMinute),
		publisher.WithRateLimit(publisher.NewYoutubePublisher(publisher.YoutubeConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			HTTPClient:   httpClient,
		}), cfg.RatePerMinute),
	)
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(uri string) (*redis.Options, error) {
	if strings.Contains(uri, "://") {
		return redis.ParseURL(uri)
	}
	return &redis.Options{Addr: uri}, nil
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

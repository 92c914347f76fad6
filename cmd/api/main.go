package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/config"
	"github.com/evalia-edu/evalia-api/internal/database"
	"github.com/evalia-edu/evalia-api/internal/handler"
	"github.com/evalia-edu/evalia-api/internal/middleware"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/repository"
	"github.com/evalia-edu/evalia-api/internal/router"
	"github.com/evalia-edu/evalia-api/internal/service"
	"github.com/evalia-edu/evalia-api/pkg/ai"
	cloud "github.com/evalia-edu/evalia-api/pkg/cloudinary"
	"github.com/evalia-edu/evalia-api/pkg/sandbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.Exercise{}, &models.Submission{}, &models.Evaluation{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	executor, err := sandbox.NewDockerExecutor(sandbox.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.SandboxMemoryMB),
		CPUShares:     int64(cfg.SandboxCPUShares),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to create sandbox executor: %v", err)
	}

	reviewer := buildReviewer(cfg, logger)
	uploader := buildUploader(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	exerciseRepo := repository.NewExerciseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	publisher := service.NewNATSEventPublisher(natsConn, logger)
	feedService := service.NewLiveFeedService(natsConn, logger)

	exerciseService := service.NewExerciseService(exerciseRepo, redisClient, cfg.CatalogCacheTTL, validate, logger)
	progressService := service.NewProgressService(exerciseRepo, submissionRepo, studentRepo, redisClient, cfg.ProgressCacheTTL, logger)
	submissionService := service.NewSubmissionService(submissionRepo, exerciseRepo, executor, reviewer, uploader, publisher, progressService, validate, logger, service.SubmissionConfig{
		ExecutionTimeout: cfg.ExecutionTimeout,
		MemoryLimitMB:    int64(cfg.SandboxMemoryMB),
		CPUShares:        int64(cfg.SandboxCPUShares),
	})
	seedService := service.NewSeedService(exerciseRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feedService.Start(appCtx); err != nil {
		log.Fatalf("failed to start live feed: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExerciseHandler:   handler.NewExerciseHandler(exerciseService, validate, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, validate, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, logger),
		LiveFeedHandler:   handler.NewLiveFeedHandler(feedService, logger),
		SeedHandler:       handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func buildReviewer(cfg config.Config, logger zerolog.Logger) ai.Reviewer {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn().Msg("openai api key missing, ai review disabled")
			return nil
		}
		reviewer, err := ai.NewOpenAIReviewer(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Logger: logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to configure openai reviewer, ai review disabled")
			return nil
		}
		return reviewer
	case "anthropic":
		reviewer, err := ai.NewAnthropicReviewer(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to configure anthropic reviewer, ai review disabled")
			return nil
		}
		return reviewer
	default:
		logger.Info().Str("provider", cfg.AIProvider).Msg("unknown ai provider, ai review disabled")
		return nil
	}
}

func buildUploader(cfg config.Config, logger zerolog.Logger) service.AttachmentUploader {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		logger.Info().Msg("cloudinary not configured, submission attachments are not stored")
		return nil
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to configure cloudinary, submission attachments are not stored")
		return nil
	}
	return uploader
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}

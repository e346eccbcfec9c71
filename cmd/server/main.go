package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ielts-sim/exam-service/internal/cache"
	"github.com/ielts-sim/exam-service/internal/config"
	"github.com/ielts-sim/exam-service/internal/events"
	"github.com/ielts-sim/exam-service/internal/handlers"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/oracle"
	"github.com/ielts-sim/exam-service/internal/repositories/postgres"
	"github.com/ielts-sim/exam-service/internal/services"
	"github.com/ielts-sim/exam-service/internal/utils"
	"github.com/ielts-sim/exam-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.MockTest{},
		&models.SectionDefinition{},
		&models.QuestionGroup{},
		&models.Question{},
		&models.ExamSession{},
		&models.SectionResult{},
	); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	var cacheService cache.CacheService
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, session resume state kept in memory only", "error", err)
		cacheService = cache.NewMemoryCache()
	} else {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, logger)
	}

	slogLogger := logger.(*utils.SlogLogger).GetSlogLogger()
	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		logger.Warn("event publisher unavailable, events kept in memory", "error", err)
		publisher = events.NewMockEventPublisher(slogLogger)
	}
	defer publisher.Close()

	ctx := context.Background()
	evaluator, err := oracle.NewGeminiOracle(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Error("failed to initialize evaluation oracle", "error", err)
		os.Exit(1)
	}

	validator := utils.NewValidator()
	repo := postgres.NewRepository(db)

	sessionService := services.NewExamSessionService(repo, evaluator, publisher, cacheService, logger, validator)
	defer sessionService.Close()
	mockTestService := services.NewMockTestService(repo, logger)

	router := gin.New()
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlerManager := handlers.NewHandlerManager(sessionService, mockTestService, validator, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("exam service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}

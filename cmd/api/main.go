package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/api/swagger"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/handler"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/middleware"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/migrations"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/repository"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/service"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/cache"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/config"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/database"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/export"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/logger"
	corsmiddleware "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/middleware/cors"
	reqidmiddleware "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/middleware/requestid"
)

// @title Driving Instructor API
// @version 1.0.0
// @description Management API for a single-instructor Tunisian driving school
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db.DB, cfg.Database.AutoMigrate, logr); err != nil {
		logr.Fatal("failed to run migrations", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Stats.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
			cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Stats.CacheTTL, logr, false)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, true)
		}
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Stats.CacheTTL, logr, false)
	}

	studentRepo := repository.NewStudentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	csvExporter := export.NewCSVExporter()
	pdfExporter := export.NewPDFExporter()

	aggregateSvc := service.NewAggregateService(studentRepo, lessonRepo, paymentRepo, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, lessonRepo, paymentRepo, cacheSvc, metricsSvc, cfg.Stats.CacheTTL, logr)
	lessonSvc := service.NewLessonService(lessonRepo, studentRepo, aggregateSvc, dashboardSvc, nil, logr, cfg.School.DefaultHourlyRate)
	studentSvc := service.NewStudentService(studentRepo, lessonSvc, csvExporter, pdfExporter, nil, logr, cfg.School.DefaultHourlyRate)
	settingsSvc := service.NewSettingsService(settingsRepo, nil, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, studentRepo, aggregateSvc, pdfExporter, settingsSvc, dashboardSvc, nil, logr,
		cfg.School.CurrencySymbol)
	notificationSvc := service.NewNotificationService(notificationRepo, lessonSvc, nil, logr)

	studentHandler := handler.NewStudentHandler(studentSvc, paymentSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		students := api.Group("/students")
		{
			students.GET("", studentHandler.List)
			students.POST("", studentHandler.Create)
			students.GET("/export", studentHandler.Export)
			students.GET("/search", studentHandler.Search)
			students.GET("/:id", studentHandler.Get)
			students.PUT("/:id", studentHandler.Update)
			students.DELETE("/:id", studentHandler.Delete)
			students.GET("/:id/stats", studentHandler.Stats)
			students.GET("/:id/balance", studentHandler.Balance)
		}

		lessons := api.Group("/lessons")
		{
			lessons.GET("", lessonHandler.List)
			lessons.POST("", lessonHandler.Create)
			lessons.GET("/today", lessonHandler.Today)
			lessons.GET("/range", lessonHandler.Range)
			lessons.GET("/student/:studentId", lessonHandler.ByStudent)
			lessons.POST("/auto-complete", lessonHandler.AutoComplete)
			lessons.GET("/:id", lessonHandler.Get)
			lessons.PUT("/:id", lessonHandler.Update)
			lessons.DELETE("/:id", lessonHandler.Delete)
			lessons.POST("/:id/complete", lessonHandler.Complete)
		}

		payments := api.Group("/payments")
		{
			payments.GET("", paymentHandler.List)
			payments.POST("", paymentHandler.Create)
			payments.GET("/range", paymentHandler.Range)
			payments.GET("/student/:studentId", paymentHandler.ByStudent)
			payments.GET("/balance/:studentId", paymentHandler.Balance)
			payments.GET("/:id", paymentHandler.Get)
			payments.PUT("/:id", paymentHandler.Update)
			payments.DELETE("/:id", paymentHandler.Delete)
			payments.GET("/:id/receipt", paymentHandler.Receipt)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("", notificationHandler.Create)
			notifications.GET("/pending", notificationHandler.Pending)
			notifications.POST("/generate-today", notificationHandler.GenerateToday)
			notifications.GET("/:id", notificationHandler.Get)
			notifications.PUT("/:id", notificationHandler.Update)
			notifications.DELETE("/:id", notificationHandler.Delete)
			notifications.PUT("/:id/sent", notificationHandler.MarkSent)
		}

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("/stats", dashboardHandler.Stats)
			dashboard.GET("/lessons", dashboardHandler.LessonStats)
			dashboard.GET("/payments", dashboardHandler.PaymentStats)
			dashboard.GET("/system", dashboardHandler.System)
		}

		settings := api.Group("/settings")
		{
			settings.GET("", settingsHandler.List)
			settings.PUT("", settingsHandler.Upsert)
			settings.GET("/:key", settingsHandler.Get)
			settings.PUT("/:key", settingsHandler.Upsert)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

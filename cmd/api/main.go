package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusgate/admissions-api/api/swagger"
	"github.com/campusgate/admissions-api/internal/handler"
	"github.com/campusgate/admissions-api/internal/middleware"
	"github.com/campusgate/admissions-api/internal/repository"
	"github.com/campusgate/admissions-api/internal/service"
	"github.com/campusgate/admissions-api/pkg/cache"
	"github.com/campusgate/admissions-api/pkg/config"
	"github.com/campusgate/admissions-api/pkg/database"
	"github.com/campusgate/admissions-api/pkg/export"
	"github.com/campusgate/admissions-api/pkg/logger"
	corsmiddleware "github.com/campusgate/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusgate/admissions-api/pkg/middleware/requestid"
)

// @title CampusGate Admissions API
// @version 1.0.0
// @description Course application lifecycle engine for the admissions platform
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	applicationRepo := repository.NewApplicationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	runner := repository.NewTxRunner(db, cfg.Selection.MaxTxRetries, logr)

	metricsSvc := service.NewMetricsService()
	notifier := service.NewNotifier(notificationRepo, cfg.Notifications, logr)
	notifier.Start(context.Background())
	defer notifier.Stop()

	catalogSvc := service.NewCatalogService(catalogRepo, cacheRepo, cfg.Catalog.CacheTTL, metricsSvc, logr)
	eligibilitySvc := service.NewEligibilityService()
	applicationSvc := service.NewApplicationService(applicationRepo, runner, studentRepo, catalogSvc, eligibilitySvc, notifier, metricsSvc, validate, logr)
	decisionSvc := service.NewDecisionService(applicationRepo, runner, notifier, metricsSvc, validate, logr)
	selectionSvc := service.NewSelectionService(applicationRepo, runner, notifier, metricsSvc, logr)

	var letters *export.LetterExporter
	if cfg.Letters.Enabled {
		letters = export.NewLetterExporter()
	}

	applicationHandler := handler.NewApplicationHandler(applicationSvc, letters)
	admissionHandler := handler.NewAdmissionHandler(decisionSvc, selectionSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Actor(cfg.JWT.Secret))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/applications", applicationHandler.Apply)
		api.GET("/applications", applicationHandler.List)
		api.GET("/applications/:id", applicationHandler.Get)
		api.POST("/applications/:id/decision", admissionHandler.Decide)
		api.POST("/applications/:id/withdraw", applicationHandler.Withdraw)
		api.GET("/applications/:id/letter", applicationHandler.Letter)
		api.POST("/students/:id/selection", admissionHandler.SelectOffer)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

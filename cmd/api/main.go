package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/reefdesk/dive-admin-api/api/swagger"
	"github.com/reefdesk/dive-admin-api/internal/handler"
	"github.com/reefdesk/dive-admin-api/internal/middleware"
	"github.com/reefdesk/dive-admin-api/internal/models"
	"github.com/reefdesk/dive-admin-api/internal/repository"
	"github.com/reefdesk/dive-admin-api/internal/service"
	"github.com/reefdesk/dive-admin-api/pkg/cache"
	"github.com/reefdesk/dive-admin-api/pkg/config"
	"github.com/reefdesk/dive-admin-api/pkg/database"
	"github.com/reefdesk/dive-admin-api/pkg/jobs"
	"github.com/reefdesk/dive-admin-api/pkg/logger"
	corsmiddleware "github.com/reefdesk/dive-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/reefdesk/dive-admin-api/pkg/middleware/requestid"
	"github.com/reefdesk/dive-admin-api/pkg/storage"
)

// @title Dive Admin API
// @version 1.0.0
// @description Dive center back office: instructor availability, bookings and locations
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	userRepo := repository.NewUserRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	reportRepo := repository.NewReportRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "dive-admin-api",
	})
	userSvc := service.NewUserService(userRepo, nil, logr)
	instructorSvc := service.NewInstructorService(instructorRepo, locationRepo, nil, logr)
	locationSvc := service.NewLocationService(locationRepo, nil, logr)
	resolver := service.NewAvailabilityResolver(logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, cacheRepo, resolver, nil, logr, metricsSvc, cfg.Availability, cfg.Exports)
	bookingSvc := service.NewBookingService(bookingRepo, availabilitySvc, nil, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Reports.ResultTTL)
	exportSvc := service.NewExportService(availabilitySvc, availabilitySvc, instructorRepo, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.ResultTTL,
	}, logr)
	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.MaxRetries, logr)
	reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.Workers,
		MaxRetries: cfg.Reports.MaxRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.ResultTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.MaxRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	instructorHandler := handler.NewInstructorHandler(instructorSvc)
	locationHandler := handler.NewLocationHandler(locationSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, metricsSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

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

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(authSvc))

	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleManager)
	scheduleWriter := middleware.RBAC(string(models.RoleAdmin), string(models.RoleManager), middleware.SelfInstructor)
	scheduleAudit := middleware.Audit(userRepo, models.AuditActionScheduleWrite, "availability")

	instructors := protected.Group("/instructors")
	{
		instructors.GET("", instructorHandler.List)
		instructors.POST("", staffOnly, instructorHandler.Create)
		instructors.GET("/:instructorId", instructorHandler.Get)
		instructors.PUT("/:instructorId", staffOnly, instructorHandler.Update)
		instructors.DELETE("/:instructorId", middleware.RequireRoles(models.RoleAdmin), instructorHandler.Deactivate)

		instructors.GET("/:instructorId/locations", instructorHandler.ListLocations)
		instructors.PUT("/:instructorId/locations/:locationId", staffOnly, instructorHandler.AssignLocation)
		instructors.DELETE("/:instructorId/locations/:locationId", staffOnly, instructorHandler.UnassignLocation)

		availability := instructors.Group("/:instructorId/availability")
		{
			availability.GET("", availabilityHandler.ResolveDay)
			availability.GET("/range", availabilityHandler.ResolveRange)
			availability.GET("/rules", availabilityHandler.ListRules)
			availability.GET("/export", availabilityHandler.ExportWeeklySchedule)

			writes := availability.Group("", scheduleWriter, scheduleAudit)
			writes.PUT("/weekly", availabilityHandler.ReplaceWeeklySchedule)
			writes.POST("/overrides", availabilityHandler.AddOverride)
			writes.DELETE("/overrides/:ruleId", availabilityHandler.DeleteOverride)
			writes.POST("/time-off", availabilityHandler.AddTimeOff)
			writes.DELETE("/time-off/:ruleId", availabilityHandler.DeleteTimeOff)
		}
	}

	locations := protected.Group("/locations")
	{
		locations.GET("", locationHandler.List)
		locations.GET("/:id", locationHandler.Get)
		locations.POST("", staffOnly, locationHandler.Create)
		locations.PUT("/:id", staffOnly, locationHandler.Update)
		locations.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), locationHandler.Deactivate)
	}

	if cfg.Bookings.Enabled {
		bookings := protected.Group("/bookings")
		bookings.GET("", bookingHandler.List)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.POST("", staffOnly, bookingHandler.Create)
		bookings.DELETE("/:id", staffOnly, bookingHandler.Cancel)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/download/:token", reportHandler.Download)

		authedReports := reports.Group("", middleware.JWT(authSvc))
		authedReports.POST("", reportHandler.GenerateReport)
		authedReports.GET("/:id", reportHandler.ReportStatus)
	}

	users := protected.Group("/users", middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

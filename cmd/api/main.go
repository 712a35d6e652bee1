package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campushq/helpdesk-api/api/swagger"
	"github.com/campushq/helpdesk-api/internal/handler"
	"github.com/campushq/helpdesk-api/internal/middleware"
	"github.com/campushq/helpdesk-api/internal/models"
	"github.com/campushq/helpdesk-api/internal/notify"
	"github.com/campushq/helpdesk-api/internal/realtime"
	"github.com/campushq/helpdesk-api/internal/repository"
	"github.com/campushq/helpdesk-api/internal/service"
	"github.com/campushq/helpdesk-api/pkg/cache"
	"github.com/campushq/helpdesk-api/pkg/config"
	"github.com/campushq/helpdesk-api/pkg/database"
	"github.com/campushq/helpdesk-api/pkg/logger"
	corsmiddleware "github.com/campushq/helpdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/helpdesk-api/pkg/middleware/requestid"
	"github.com/campushq/helpdesk-api/pkg/storage"
)

// @title CampusHQ Helpdesk API
// @version 1.0.0
// @description Institutional service requests, announcements and realtime notifications
// @BasePath /api/v1
// @schemes http

// requestEventFanout forwards events to the realtime router and drops cached
// analytics whenever the request store changes.
type requestEventFanout struct {
	router    *notify.Router
	analytics *service.AnalyticsService
}

func (f *requestEventFanout) Publish(ev models.NotificationEvent) {
	f.router.Publish(ev)
	if ev.Request != nil && f.analytics != nil {
		f.analytics.InvalidateRequestRollups(context.Background())
	}
}

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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Realtime hub and event routing.
	hub := realtime.NewHub()
	router := notify.NewRouter(hub, logr)

	// Services. One validator instance carries every custom registration.
	validate := validator.New()
	metricsSvc := service.NewMetricsService(hub.ClientCount)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled && redisClient != nil)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metricsSvc, hub, cfg.Analytics.CacheTTL, logr)

	events := &requestEventFanout{router: router, analytics: analyticsSvc}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	categorySvc := service.NewCategoryService(categoryRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, events, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, categorySvc, events, announcementSvc, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(requestRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			Workers:   cfg.Exports.WorkerConcurrency,
		}, logr, nil, nil)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	wsHandler := handler.NewWSHandler(hub, authSvc, cfg.Realtime, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/ws/notifications", wsHandler.Connect)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		authed := api.Group("", middleware.JWT(authSvc))
		authed.GET("/auth/me", authHandler.Me)

		requests := authed.Group("/requests")
		{
			requests.POST("", requestHandler.Create)
			requests.GET("", requestHandler.List)
			requests.GET("/stats", middleware.RequireStaff(), analyticsHandler.Stats)
			requests.GET("/:id", requestHandler.Get)
			requests.PATCH("/:id", requestHandler.Update)
			requests.PATCH("/:id/status", middleware.RequireStaff(), requestHandler.UpdateStatus)
			requests.DELETE("/:id", middleware.RequireStaff(), requestHandler.Delete)
		}

		announcements := authed.Group("/announcements")
		{
			announcements.GET("", announcementHandler.List)
			announcements.POST("", middleware.RequireRoles(models.RoleManager, models.RoleAdmin), announcementHandler.Create)
			announcements.GET("/all", middleware.RequireStaff(), announcementHandler.ListAll)
			announcements.GET("/unread-count", announcementHandler.UnreadCount)
			announcements.POST("/read-all", announcementHandler.MarkAllRead)
			announcements.GET("/:id", announcementHandler.Get)
			announcements.POST("/:id/read", announcementHandler.MarkRead)
			announcements.DELETE("/:id", middleware.RequireRoles(models.RoleManager, models.RoleAdmin), announcementHandler.Delete)
		}

		// Category listing is public so the request form can populate before login.
		api.GET("/categories", categoryHandler.List)
		api.POST("/categories", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), categoryHandler.Create)

		analytics := authed.Group("/analytics")
		{
			analytics.GET("/requests", middleware.RequireStaff(), analyticsHandler.Overview)
			analytics.GET("/system", middleware.RequireRoles(models.RoleAdmin), analyticsHandler.System)
		}

		exports := api.Group("/exports")
		{
			exports.POST("/requests", middleware.JWT(authSvc), middleware.RequireStaff(), exportHandler.Enqueue)
			exports.GET("/:id", middleware.JWT(authSvc), middleware.RequireStaff(), exportHandler.Job)
			// Download authenticates with the signature in the URL itself.
			exports.GET("/:id/download", exportHandler.Download)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if exportSvc != nil {
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

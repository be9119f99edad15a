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

	"github.com/telsite/fieldops-api/internal/handler"
	"github.com/telsite/fieldops-api/internal/middleware"
	"github.com/telsite/fieldops-api/internal/models"
	"github.com/telsite/fieldops-api/internal/repository"
	"github.com/telsite/fieldops-api/internal/service"
	"github.com/telsite/fieldops-api/pkg/cache"
	"github.com/telsite/fieldops-api/pkg/config"
	"github.com/telsite/fieldops-api/pkg/database"
	"github.com/telsite/fieldops-api/pkg/geo"
	"github.com/telsite/fieldops-api/pkg/imagehost"
	"github.com/telsite/fieldops-api/pkg/logger"
	corsmiddleware "github.com/telsite/fieldops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/telsite/fieldops-api/pkg/middleware/requestid"
)

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
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Redis is optional: without it reads degrade to direct store queries.
	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, serving reads without cache", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		}
	}

	siteRepo := repository.NewSiteRepository(db, cfg.History.Limit)
	accountRepo := repository.NewAccountRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, logr, cfg.Audit)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditSvc.Start(auditCtx)
	defer func() {
		stopAudit()
		auditSvc.Stop()
	}()

	var uploader *imagehost.Client
	if cfg.ImageHost.Enabled {
		uploader = imagehost.NewClient(cfg.ImageHost.Endpoint, cfg.ImageHost.APIKey, cfg.ImageHost.Timeout)
	}

	verifier := geo.NewVerifier(cfg.Geofence.RadiusMeters, cfg.Geofence.SkipUnregistered)

	authSvc := service.NewAuthService(accountRepo, auditSvc, cfg.JWT, validate, logr)
	siteSvc := service.NewSiteService(siteRepo, cacheSvc, logr)
	gatewaySvc := service.NewGatewayService(siteRepo, accountRepo, messageRepo, auditSvc, validate, logr)
	reportSvc := service.NewReportService(siteRepo, auditSvc, logr)

	var accessSvc *service.AccessService
	var keySvc *service.KeyService
	if uploader != nil {
		accessSvc = service.NewAccessService(siteRepo, accountRepo, verifier, uploader, auditSvc, cacheSvc, metricsSvc, validate, logr)
		keySvc = service.NewKeyService(siteRepo, accountRepo, uploader, auditSvc, cacheSvc, metricsSvc, validate, logr)
	} else {
		accessSvc = service.NewAccessService(siteRepo, accountRepo, verifier, nil, auditSvc, cacheSvc, metricsSvc, validate, logr)
		keySvc = service.NewKeyService(siteRepo, accountRepo, nil, auditSvc, cacheSvc, metricsSvc, validate, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	siteHandler := handler.NewSiteHandler(siteSvc)
	accessHandler := handler.NewAccessHandler(accessSvc)
	keyHandler := handler.NewKeyHandler(keySvc)
	gatewayHandler := handler.NewGatewayHandler(gatewaySvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("", middleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	officer := middleware.RequireRoles(models.RoleFieldOfficer, models.RoleAdmin)
	vendor := middleware.RequireRoles(models.RoleVendor)
	anyRole := middleware.RequireRoles(models.RoleVendor, models.RoleFieldOfficer, models.RoleAdmin)

	secured.GET("/sites", anyRole, siteHandler.List)
	secured.GET("/sites/overview", anyRole, siteHandler.Overview)
	secured.GET("/sites/:siteId", anyRole, siteHandler.Get)

	secured.POST("/sites/:siteId/access/request", vendor, accessHandler.Submit)
	secured.POST("/sites/:siteId/access/authorize", officer, accessHandler.Authorize)
	secured.POST("/sites/:siteId/access/deny", officer, accessHandler.Deny)
	secured.POST("/sites/:siteId/access/check-in", vendor, accessHandler.CheckIn)
	secured.POST("/sites/:siteId/access/check-out", vendor, accessHandler.CheckOut)

	secured.POST("/sites/:siteId/keys/request", vendor, keyHandler.RequestBorrow)
	secured.POST("/sites/:siteId/keys/authorize", officer, keyHandler.AuthorizeBorrow)
	secured.POST("/sites/:siteId/keys/deny", officer, keyHandler.DenyBorrow)
	secured.POST("/sites/:siteId/keys/confirm", vendor, keyHandler.ConfirmBorrow)
	secured.POST("/sites/:siteId/keys/return", vendor, keyHandler.Return)

	secured.GET("/gateway/pending", officer, gatewayHandler.PendingApprovals)
	secured.POST("/vendors/:vendorId/messages", officer, gatewayHandler.SendMessage)
	secured.GET("/vendors/:vendorId/messages", middleware.RBAC("FIELD_OFFICER", "ADMIN", "SELF"), gatewayHandler.Messages)
	secured.GET("/vendors/:vendorId/messages/unread", middleware.RBAC("FIELD_OFFICER", "ADMIN", "SELF"), gatewayHandler.UnreadCount)
	secured.POST("/vendors/:vendorId/messages/:messageId/read", middleware.RBAC("SELF"), gatewayHandler.MarkRead)

	secured.GET("/sites/:siteId/reports/visits", officer, reportHandler.VisitHistory)
	secured.GET("/sites/:siteId/reports/keys", officer, reportHandler.KeyHistory)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

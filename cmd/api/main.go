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
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/crestline-hq/crestline-api/api/swagger"
	"github.com/crestline-hq/crestline-api/internal/handler"
	"github.com/crestline-hq/crestline-api/internal/middleware"
	"github.com/crestline-hq/crestline-api/internal/notify"
	"github.com/crestline-hq/crestline-api/internal/repository"
	"github.com/crestline-hq/crestline-api/internal/service"
	"github.com/crestline-hq/crestline-api/pkg/cache"
	"github.com/crestline-hq/crestline-api/pkg/config"
	"github.com/crestline-hq/crestline-api/pkg/database"
	"github.com/crestline-hq/crestline-api/pkg/export"
	"github.com/crestline-hq/crestline-api/pkg/logger"
	corsmiddleware "github.com/crestline-hq/crestline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/crestline-hq/crestline-api/pkg/middleware/requestid"
	"github.com/crestline-hq/crestline-api/pkg/storage"
)

// @title Crestline API
// @version 1.0.0
// @description Internal management API: staff, clients, finance approvals, notifications
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to ensure schema", zap.Error(err))
	}

	store, err := storage.NewLocalStorage(cfg.Files.StorageDir)
	if err != nil {
		logr.Fatal("failed to init file storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Files.SignedURLSecret, cfg.Files.SignedURLTTL)

	validate := validator.New()
	metrics := service.NewMetricsService()

	hub := notify.NewHub(cfg.Notifications.StreamBuffer, logr)
	var broadcaster notify.Broadcaster = notify.NewLocalBroadcaster(hub)
	var cacheService *service.CacheService

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without cache and cross-node push", zap.Error(err))
	} else {
		defer redisClient.Close()
		redisBroadcaster := notify.NewRedisBroadcaster(redisClient, hub, logr)
		go redisBroadcaster.Run(ctx)
		broadcaster = redisBroadcaster

		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metrics, cfg.Notifications.UnreadCacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "crestline-api",
	})
	userService := service.NewUserService(userRepo, targetRepo, validate, logr)
	clientService := service.NewClientService(clientRepo, userRepo, broadcaster, validate, logr)
	staffService := service.NewStaffService(staffRepo, validate, logr)
	partnerService := service.NewPartnerService(partnerRepo, validate, logr)
	departmentService := service.NewDepartmentService(departmentRepo, validate, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, broadcaster, cacheService, cfg.Notifications.UnreadCacheTTL, validate, logr)
	approvalService := service.NewApprovalService(ledgerRepo, assetRepo, userRepo, broadcaster, logr)
	ledgerService := service.NewLedgerService(ledgerRepo, validate, logr)
	assetService := service.NewAssetService(assetRepo, validate, logr)
	targetService := service.NewTargetService(targetRepo, clientService, broadcaster, validate, logr, metrics)
	certificateService := service.NewCertificateService(certificateRepo, store, signer, validate, logr,
		cfg.Certificates.WorkerConcurrency, cfg.Certificates.WorkerRetries)
	exportService := service.NewExportService(ledgerService, targetService, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	if cfg.Certificates.Enabled {
		certificateService.StartWorkers(ctx)
		defer certificateService.StopWorkers()
	}

	scheduler := cron.New()
	scheduled := false
	if cfg.Depreciation.Enabled {
		if _, err := scheduler.AddFunc(cfg.Depreciation.Schedule, func() {
			if err := assetService.SnapshotAll(context.Background()); err != nil {
				logr.Error("depreciation snapshot sweep failed", zap.Error(err))
			}
		}); err != nil {
			logr.Fatal("invalid depreciation schedule", zap.Error(err))
		}
		scheduled = true
	}
	if cfg.Files.Retention > 0 {
		if _, err := scheduler.AddFunc("0 3 * * *", func() {
			removed, err := store.CleanupOlderThan(cfg.Files.Retention)
			if err != nil {
				logr.Error("stored file cleanup failed", zap.Error(err))
				return
			}
			if len(removed) > 0 {
				logr.Info("stored file cleanup", zap.Int("removed", len(removed)))
			}
		}); err != nil {
			logr.Fatal("invalid cleanup schedule", zap.Error(err))
		}
		scheduled = true
	}
	if scheduled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Files.MaxFileSizeBytes

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Users:         handler.NewUserHandler(userService),
		Clients:       handler.NewClientHandler(clientService),
		Staff:         handler.NewStaffHandler(staffService),
		Partners:      handler.NewPartnerHandler(partnerService),
		Departments:   handler.NewDepartmentHandler(departmentService),
		Notifications: handler.NewNotificationHandler(notificationService, store, signer),
		Events:        handler.NewEventsHandler(hub),
		Ledgers:       handler.NewLedgerHandler(ledgerService, approvalService, exportService),
		Assets:        handler.NewAssetHandler(assetService, approvalService),
		Targets:       handler.NewTargetHandler(targetService),
		Reports:       handler.NewReportHandler(targetService, exportService),
		Certificates:  handler.NewCertificateHandler(certificateService),
		Files:         handler.NewFilesHandler(store, signer),
		Metrics:       handler.NewMetricsHandler(metrics),
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, authService, userRepo, handlers)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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

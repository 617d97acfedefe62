package main

import (
	"context"
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

	_ "github.com/shiftwise/shiftwise-api/api/swagger"
	"github.com/shiftwise/shiftwise-api/internal/handler"
	"github.com/shiftwise/shiftwise-api/internal/middleware"
	"github.com/shiftwise/shiftwise-api/internal/models"
	"github.com/shiftwise/shiftwise-api/internal/repository"
	"github.com/shiftwise/shiftwise-api/internal/service"
	"github.com/shiftwise/shiftwise-api/pkg/cache"
	"github.com/shiftwise/shiftwise-api/pkg/config"
	"github.com/shiftwise/shiftwise-api/pkg/database"
	"github.com/shiftwise/shiftwise-api/pkg/logger"
	corsmiddleware "github.com/shiftwise/shiftwise-api/pkg/middleware/cors"
	reqidmiddleware "github.com/shiftwise/shiftwise-api/pkg/middleware/requestid"
	"github.com/shiftwise/shiftwise-api/pkg/storage"
)

// @title ShiftWise API
// @version 0.1.0
// @description Interactive shift-schedule editing service
// @BasePath /api/v1
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, candidate caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	scheduleRepo := repository.NewScheduleRepository(db)
	requirementRepo := repository.NewSlotRequirementRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	constraintRepo := repository.NewConstraintRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	editSvc := service.NewEditSessionService(
		scheduleRepo,
		requirementRepo,
		assignmentRepo,
		employeeRepo,
		shiftRepo,
		constraintRepo,
		cacheRepo,
		metricsSvc,
		validate,
		logr,
		service.EditSessionConfig{
			SessionTTL:        cfg.Editor.SessionTTL,
			CandidateCacheTTL: cfg.Editor.CandidateCacheTTL,
			MinRestHours:      cfg.Editor.MinRestHours,
		},
	)
	commitSvc := service.NewCommitService(editSvc, assignmentRepo, scheduleRepo, assignmentRepo, requirementRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(
			scheduleRepo,
			assignmentRepo,
			employeeRepo,
			shiftRepo,
			fileStore,
			signer,
			service.ExportConfig{
				APIPrefix:   cfg.APIPrefix,
				ResultTTL:   cfg.Exports.SignedURLTTL,
				Concurrency: cfg.Exports.WorkerConcurrency,
				Retries:     cfg.Exports.WorkerRetries,
			},
			logr,
		)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
		go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr.Sugar())
	}

	sessionHandler := handler.NewSessionHandler(editSvc, commitSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	editors := api.Group("")
	editors.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleManager))
	{
		editors.POST("/schedules/:id/sessions", sessionHandler.Open)
		editors.DELETE("/sessions/:id", sessionHandler.Close)
		editors.GET("/sessions/:id/board", sessionHandler.Board)
		editors.GET("/sessions/:id/slots/:key", sessionHandler.Slot)
		editors.POST("/sessions/:id/selection", sessionHandler.SelectSlot)
		editors.GET("/sessions/:id/candidates", sessionHandler.Candidates)
		editors.POST("/sessions/:id/commands", sessionHandler.Command)
		editors.GET("/sessions/:id/changes", sessionHandler.ListChanges)
		editors.DELETE("/sessions/:id/changes/:key", sessionHandler.CancelChange)
		editors.POST("/sessions/:id/commit", sessionHandler.Commit)
	}

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.POST("/exports", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), exportHandler.Create)
		api.GET("/exports/:id", exportHandler.Status)
		// Download is token-authenticated, outside the JWT group.
		r.GET(cfg.APIPrefix+"/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func runExportCleanup(ctx context.Context, svc *service.ExportService, interval time.Duration, logr *zap.SugaredLogger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := svc.Cleanup()
			if err != nil {
				logr.Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Infow("export cleanup", "removed", len(removed))
			}
		}
	}
}

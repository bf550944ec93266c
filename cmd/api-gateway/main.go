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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academy-gradebook-api/api/swagger"
	"github.com/noah-isme/academy-gradebook-api/internal/handler"
	internalmiddleware "github.com/noah-isme/academy-gradebook-api/internal/middleware"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	"github.com/noah-isme/academy-gradebook-api/internal/repository"
	"github.com/noah-isme/academy-gradebook-api/internal/service"
	"github.com/noah-isme/academy-gradebook-api/pkg/cache"
	"github.com/noah-isme/academy-gradebook-api/pkg/config"
	"github.com/noah-isme/academy-gradebook-api/pkg/database"
	"github.com/noah-isme/academy-gradebook-api/pkg/jobs"
	"github.com/noah-isme/academy-gradebook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academy-gradebook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-gradebook-api/pkg/middleware/requestid"
	"github.com/noah-isme/academy-gradebook-api/pkg/storage"
)

// @title Academy Gradebook API
// @version 1.0.0
// @description Computes course grades and gradebooks from assignment and quiz records.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it grades are computed on every request.
	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, grade cache disabled", "error", err)
	} else {
		redisClient = client
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	courseRepo := repository.NewCourseRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	attemptRepo := repository.NewQuizAttemptRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	exportRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Gradebook.CacheTTL, logr, cfg.Gradebook.CacheEnabled && redisClient != nil)
	tokenSvc := service.NewTokenService(cfg.JWT)
	accessSvc := service.NewCourseAccessService(enrollmentRepo, logr)
	gradebookSvc := service.NewGradebookService(service.GradebookRepositories{
		Courses:     courseRepo,
		Assignments: assignmentRepo,
		Quizzes:     quizRepo,
		Submissions: submissionRepo,
		Attempts:    attemptRepo,
		Roster:      enrollmentRepo,
		Versions:    courseRepo,
	}, cacheSvc, metricsSvc, service.GradebookConfig{
		CacheTTL:          cfg.Gradebook.CacheTTL,
		RosterConcurrency: cfg.Gradebook.RosterConcurrency,
		DefaultPageSize:   cfg.Gradebook.DefaultPageSize,
		MaxPageSize:       cfg.Gradebook.MaxPageSize,
	}, logr)
	gradingSvc := service.NewCourseGradingService(courseRepo, cacheSvc, validate, logr)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(gradebookSvc, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)
	exportWorker := service.NewExportWorker(exportRepo, exportSvc, metricsSvc, logr)
	exportQueue := jobs.NewQueue("gradebook-exports", exportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnFailure:  exportWorker.MarkFailed,
		Logger:     logr,
	})
	exportJobSvc := service.NewExportJobService(exportRepo, courseRepo, accessSvc, exportQueue, exportSvc, validate, logr, service.ExportJobConfig{
		Enabled:         cfg.Exports.Enabled,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	if cfg.Exports.Enabled {
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	gradeHandler := handler.NewGradeHandler(gradebookSvc, accessSvc)
	gradingHandler := handler.NewCourseGradingHandler(gradingSvc, accessSvc)
	exportHandler := handler.NewExportHandler(exportJobSvc, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc,
		map[string]handler.ReadinessCheck{"database": db.PingContext},
		map[string]handler.ReadinessCheck{"redis": cacheRepo.Ping},
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/export/:token", exportHandler.Download)

	staff := internalmiddleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(tokenSvc))
	{
		secured.GET("/courses/:id/grades/me", internalmiddleware.RequireRoles(models.RoleStudent), gradeHandler.MyGrade)
		secured.GET("/courses/:id/students/:studentId/grade", staff, gradeHandler.StudentGrade)
		secured.GET("/courses/:id/gradebook", staff, gradeHandler.Gradebook)
		secured.GET("/courses/:id/grading", staff, gradingHandler.Get)
		secured.PUT("/courses/:id/grading", staff, gradingHandler.Update)
		secured.POST("/courses/:id/gradebook/exports", staff, exportHandler.Create)
		secured.GET("/exports/:id", staff, exportHandler.Status)
		secured.GET("/metrics/summary", internalmiddleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

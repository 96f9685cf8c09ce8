package main

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	_ "github.com/gh-Constant/IUT-homework/api/swagger"
	"github.com/gh-Constant/IUT-homework/internal/repository"
	"github.com/gh-Constant/IUT-homework/internal/router"
	"github.com/gh-Constant/IUT-homework/internal/rules"
	"github.com/gh-Constant/IUT-homework/internal/service"
	"github.com/gh-Constant/IUT-homework/pkg/cache"
	"github.com/gh-Constant/IUT-homework/pkg/config"
	"github.com/gh-Constant/IUT-homework/pkg/database"
	"github.com/gh-Constant/IUT-homework/pkg/logger"
	"github.com/gh-Constant/IUT-homework/pkg/scheduler"
	"github.com/gh-Constant/IUT-homework/pkg/storage"
)

// @title IUT Homework API
// @version 1.0.0
// @description Shared homework tracker for IUT groups
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// metricsSink counts delivered reminders on top of the wrapped sink.
type metricsSink struct {
	next    scheduler.Sink
	metrics *service.MetricsService
}

func (s *metricsSink) Deliver(ctx context.Context, r scheduler.Reminder) error {
	if err := s.next.Deliver(ctx, r); err != nil {
		return err
	}
	s.metrics.RecordReminderFired()
	return nil
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, feed cache disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	reminders := scheduler.New(&metricsSink{next: scheduler.NewLogSink(logr), metrics: metricsSvc}, logr)
	defer reminders.Stop()

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	completionRepo := repository.NewCompletionRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	userRepo.SetObserver(metricsSvc)
	assignmentRepo.SetObserver(metricsSvc)
	completionRepo.SetObserver(metricsSvc)
	voteRepo.SetObserver(metricsSvc)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	policy := rules.Policy{
		MinDeletionDelay: cfg.Policy.MinDeletionDelay,
		ArchiveGrace:     cfg.Policy.ArchiveGrace,
		VoteQuorumRatio:  cfg.Policy.VoteQuorumRatio,
	}

	assignmentSvc := service.NewAssignmentService(assignmentRepo, completionRepo, voteRepo, userRepo, reminders, validate, logr, service.AssignmentServiceConfig{
		Policy:           policy,
		RemindersEnabled: cfg.Reminders.Enabled,
		ReminderLead:     cfg.Reminders.Lead,
	})
	assignmentSvc.SetMetrics(metricsSvc)

	userSvc := service.NewUserService(userRepo, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(assignmentSvc, store, signer, cfg.Exports.SignedURLTTL, logr)
		exportSvc.Cleanup()
	}

	r := router.New(router.Dependencies{
		Config:      cfg,
		Logger:      logr,
		Redis:       redisClient,
		Auth:        authSvc,
		Assignments: assignmentSvc,
		Users:       userSvc,
		Exports:     exportSvc,
		Metrics:     metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

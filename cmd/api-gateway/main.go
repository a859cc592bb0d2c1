package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-clearance-api/internal/handler"
	"github.com/noah-isme/sma-clearance-api/internal/repository"
	"github.com/noah-isme/sma-clearance-api/internal/service"
	"github.com/noah-isme/sma-clearance-api/pkg/cache"
	"github.com/noah-isme/sma-clearance-api/pkg/config"
	"github.com/noah-isme/sma-clearance-api/pkg/database"
	"github.com/noah-isme/sma-clearance-api/pkg/jobs"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
	"github.com/noah-isme/sma-clearance-api/pkg/messaging"
)

// @title SMA Clearance API
// @version 1.0.0
// @description Document clearance workflow: department tracks, audit trail, SLA timers and notifications.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RequestCache.Enabled || cfg.Notifications.DedupeTTL > 0 {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching and dedupe disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	sender, closeSender := mailSender(cfg, logr)
	defer closeSender()

	app := buildApp(cfg, db, cacheRepo, sender, logr)
	app.queue.Start(ctx)
	defer app.queue.Stop()

	scheduler := jobs.NewScheduler(logr)
	if cfg.SLA.SweepEnabled {
		if err := scheduler.Register("sla-sweep", cfg.SLA.SweepSchedule, func(ctx context.Context, now time.Time) error {
			_, err := app.sla.RunSweep(ctx, now)
			return err
		}); err != nil {
			logr.Fatal("failed to schedule sla sweep", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type app struct {
	workflow *service.WorkflowService
	audit    *service.AuditService
	sla      *service.SLATracker
	metrics  *service.MetricsService
	queue    *jobs.Queue
	ready    map[string]handler.Pinger
}

func buildApp(cfg *config.Config, db *sqlx.DB, cacheRepo *repository.CacheRepository, sender service.MailSender, logr *zap.Logger) *app {
	metrics := service.NewMetricsService()

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), logr)
	slaTracker := service.NewSLATracker(
		repository.NewSLAMetricRepository(db),
		service.SLAPolicyFromConfig(cfg.SLA),
		logr,
		service.WithSLAMetrics(metrics),
	)
	rules := service.NewNotificationRuleDispatcher(service.NotificationPolicyFromConfig(cfg.Notifications))

	notifyOpts := []service.NotificationServiceOption{
		service.WithDeliveryTimeout(cfg.Notifications.DeliveryTimeout),
		service.WithNotificationMetrics(metrics),
	}
	if cfg.Notifications.DedupeTTL > 0 {
		notifyOpts = append(notifyOpts, service.WithIntentDeduper(service.NewRedisIntentDeduper(cacheRepo, cfg.Notifications.DedupeTTL)))
	}
	notifier := service.NewNotificationService(sender, logr, notifyOpts...)
	queue := service.NewIntentQueue(notifier, cfg.Notifications.Workers, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.RequestCache.TTL, logr, cfg.RequestCache.Enabled)
	workflow := service.NewWorkflowService(
		repository.NewRequestRepository(db),
		auditSvc,
		slaTracker,
		rules,
		service.NewQueuedDeliverer(queue, logr),
		logr,
		service.WithWorkflowCache(cacheSvc, cfg.RequestCache.TTL),
		service.WithWorkflowMetrics(metrics),
	)

	return &app{
		workflow: workflow,
		audit:    auditSvc,
		sla:      slaTracker,
		metrics:  metrics,
		queue:    queue,
		ready: map[string]handler.Pinger{
			"database": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		},
	}
}

func mailSender(cfg *config.Config, logr *zap.Logger) (service.MailSender, func()) {
	if cfg.NATS.URL == "" {
		return messaging.NewLogMailSender(logr), func() {}
	}
	conn, err := messaging.Connect(cfg.NATS.URL, logr)
	if err != nil {
		logr.Warn("nats unavailable, notifications will be logged only", zap.Error(err))
		return messaging.NewLogMailSender(logr), func() {}
	}
	return messaging.NewNATSMailSender(conn, cfg.NATS.SubjectPrefix), func() {
		if err := conn.Drain(); err != nil {
			logr.Warn("nats drain failed", zap.Error(err))
		}
	}
}

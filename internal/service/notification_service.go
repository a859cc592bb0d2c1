package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-clearance-api/internal/models"
	"github.com/noah-isme/sma-clearance-api/pkg/jobs"
	"github.com/noah-isme/sma-clearance-api/pkg/logger"
)

// Delivery result labels.
const (
	DeliveryResultSent       = "sent"
	DeliveryResultFailed     = "failed"
	DeliveryResultTimeout    = "timeout"
	DeliveryResultSuppressed = "suppressed"
	DeliveryResultSkipped    = "skipped"
)

// MailSender hands one intent to the outbound mail transport.
type MailSender interface {
	Send(ctx context.Context, intent models.NotificationIntent) error
}

// IntentDeduper decides whether an intent was already delivered recently.
type IntentDeduper interface {
	ShouldDeliver(ctx context.Context, intent models.NotificationIntent) (bool, error)
}

// Deliverer is what the workflow coordinator uses to send intents.
type Deliverer interface {
	Deliver(ctx context.Context, intents []models.NotificationIntent) []DeliveryFailure
}

// DeliveryFailure pairs an intent with the reason it was not delivered.
type DeliveryFailure struct {
	Intent models.NotificationIntent
	Err    error
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithDeliveryTimeout bounds each send.
func WithDeliveryTimeout(timeout time.Duration) NotificationServiceOption {
	return func(s *NotificationService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithIntentDeduper enables suppression of repeated intents.
func WithIntentDeduper(deduper IntentDeduper) NotificationServiceOption {
	return func(s *NotificationService) {
		s.deduper = deduper
	}
}

// WithNotificationMetrics attaches delivery counters.
func WithNotificationMetrics(metrics *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) {
		s.metrics = metrics
	}
}

// NotificationService delivers intents independently. Failures are collected and logged, never retried.
type NotificationService struct {
	sender  MailSender
	deduper IntentDeduper
	timeout time.Duration
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNotificationService constructs the delivery loop.
func NewNotificationService(sender MailSender, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{sender: sender, timeout: 10 * time.Second, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Deliver sends every intent concurrently and returns the failures in input order.
func (s *NotificationService) Deliver(ctx context.Context, intents []models.NotificationIntent) []DeliveryFailure {
	if len(intents) == 0 {
		return nil
	}
	errs := make([]error, len(intents))
	var wg sync.WaitGroup
	for i := range intents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.deliverOne(ctx, intents[i])
		}(i)
	}
	wg.Wait()

	log := logger.FromContext(ctx, s.logger)
	var failures []DeliveryFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures = append(failures, DeliveryFailure{Intent: intents[i], Err: err})
		log.Warn("notification delivery failed",
			zap.String("request_id", intents[i].RequestID),
			zap.String("kind", string(intents[i].Kind)),
			zap.String("to", intents[i].To),
			zap.Error(err))
	}
	return failures
}

func (s *NotificationService) deliverOne(ctx context.Context, intent models.NotificationIntent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mail sender panicked: %v", p)
			s.metrics.RecordDelivery(DeliveryResultFailed)
		}
	}()
	if strings.TrimSpace(intent.To) == "" {
		s.metrics.RecordDelivery(DeliveryResultSkipped)
		logger.FromContext(ctx, s.logger).Warn("notification skipped, no recipient configured",
			zap.String("request_id", intent.RequestID),
			zap.String("kind", string(intent.Kind)))
		return nil
	}
	if s.sender == nil {
		s.metrics.RecordDelivery(DeliveryResultFailed)
		return errors.New("no mail sender configured")
	}
	if s.deduper != nil {
		deliver, dedupeErr := s.deduper.ShouldDeliver(ctx, intent)
		if dedupeErr != nil {
			logger.FromContext(ctx, s.logger).Debug("intent dedupe unavailable", zap.Error(dedupeErr))
		} else if !deliver {
			s.metrics.RecordDelivery(DeliveryResultSuppressed)
			return nil
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err = s.sender.Send(sendCtx, intent)
	switch {
	case err == nil:
		s.metrics.RecordDelivery(DeliveryResultSent)
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordDelivery(DeliveryResultTimeout)
	default:
		s.metrics.RecordDelivery(DeliveryResultFailed)
	}
	return err
}

// QueuedDeliverer hands intents to a background worker queue so mutations never wait on delivery.
type QueuedDeliverer struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// IntentJobType tags notification jobs on the queue.
const IntentJobType = "notification.intent"

// NewIntentQueue builds a worker queue that delivers one intent per job through svc. Retries are disabled.
func NewIntentQueue(svc *NotificationService, workers int, logger *zap.Logger) *jobs.Queue {
	return jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		intent, ok := job.Payload.(models.NotificationIntent)
		if !ok {
			return fmt.Errorf("unexpected payload %T", job.Payload)
		}
		if failures := svc.Deliver(ctx, []models.NotificationIntent{intent}); len(failures) > 0 {
			return failures[0].Err
		}
		return nil
	}, jobs.QueueConfig{Workers: workers, BufferSize: workers * 64, MaxRetries: 0, Logger: logger})
}

// NewQueuedDeliverer wraps a started queue.
func NewQueuedDeliverer(queue *jobs.Queue, logger *zap.Logger) *QueuedDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueuedDeliverer{queue: queue, logger: logger}
}

// Deliver enqueues each intent. Only enqueue failures are reported; delivery outcomes are logged by the worker.
func (d *QueuedDeliverer) Deliver(ctx context.Context, intents []models.NotificationIntent) []DeliveryFailure {
	var failures []DeliveryFailure
	for _, intent := range intents {
		err := d.queue.Enqueue(jobs.Job{
			ID:      fmt.Sprintf("%s:%s:%s", intent.RequestID, intent.Kind, intent.To),
			Type:    IntentJobType,
			Payload: intent,
		})
		if err != nil {
			failures = append(failures, DeliveryFailure{Intent: intent, Err: err})
			logger.FromContext(ctx, d.logger).Warn("notification enqueue failed",
				zap.String("request_id", intent.RequestID),
				zap.String("kind", string(intent.Kind)),
				zap.Error(err))
		}
	}
	return failures
}

type claimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisIntentDeduper suppresses an identical intent for ttl after its first delivery.
type RedisIntentDeduper struct {
	store claimStore
	ttl   time.Duration
}

// NewRedisIntentDeduper constructs the deduper over the cache repository.
func NewRedisIntentDeduper(store claimStore, ttl time.Duration) *RedisIntentDeduper {
	return &RedisIntentDeduper{store: store, ttl: ttl}
}

// ShouldDeliver claims the intent key; a lost claim means a recent duplicate.
func (d *RedisIntentDeduper) ShouldDeliver(ctx context.Context, intent models.NotificationIntent) (bool, error) {
	if d == nil || d.store == nil || d.ttl <= 0 {
		return true, nil
	}
	return d.store.Claim(ctx, IntentKey(intent), d.ttl)
}

// IntentKey identifies an intent for de-duplication. System notices are keyed per field change.
func IntentKey(intent models.NotificationIntent) string {
	key := fmt.Sprintf("notify:%s:%s:%s", intent.RequestID, intent.Kind, intent.To)
	if field, ok := intent.Context["field"]; ok {
		key = fmt.Sprintf("%s:%v:%v", key, field, intent.Context["newValue"])
	}
	return key
}

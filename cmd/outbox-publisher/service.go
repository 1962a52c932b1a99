package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/registry"
	"github.com/angelmondragon/autoparts-backend/pkg/pubsub"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultHandleTimeout  = 30 * time.Second
	defaultMaxAttempts    = 10
	defaultRetryBase      = 5 * time.Second
	defaultRetryMax       = 30 * time.Minute
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	// Claimed rows stay hidden this long; a crashed publisher's rows come back after it.
	leaseDuration = 2*defaultHandleTimeout + defaultPublishTimeout
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int, now time.Time) ([]models.OutboxEvent, error)
	LeaseTx(tx *gorm.DB, ids []uuid.UUID, until time.Time) error
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAt time.Time) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Handler delivers events that are not published to Pub/Sub. It runs outside
// any outbox transaction and must be safe to repeat.
type Handler interface {
	Handle(ctx context.Context, event *registry.ResolvedEvent) error
}

type deliveryGuard interface {
	Claim(ctx context.Context, sink, eventID string) (bool, error)
	Release(ctx context.Context, sink, eventID string) error
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	Repository       outboxRepository
	DLQRepository    dlqRepository
	Registry         registryResolver
	Handlers         map[enums.OutboxEventType]Handler
	PublisherFactory publisherFactory
	Guard            deliveryGuard
	Metrics          *metrics.OutboxMetrics
	Pingers          map[string]func(context.Context) error
}

type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	registry         registryResolver
	dlq              dlqRepository
	handlers         map[enums.OutboxEventType]Handler
	publisherFactory publisherFactory
	guard            deliveryGuard
	metrics          *metrics.OutboxMetrics
	pingers          map[string]func(context.Context) error
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	retryBase        time.Duration
	retryMax         time.Duration
	now              func() time.Time
}

// batchResult counts what happened to the rows claimed in one poll.
type batchResult struct {
	claimed      int
	delivered    int
	retried      int
	deadLettered int
}

// stalled reports a batch where nothing got through and something will be
// retried, which usually means the downstream is unavailable.
func (r batchResult) stalled() bool {
	return r.retried > 0 && r.delivered == 0
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}
	if _, ok := params.Handlers[enums.EventOrderSubmitted]; !ok {
		return nil, errors.New("order_submitted handler is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBase := params.Config.Outbox.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	retryMax := params.Config.Outbox.RetryMaxDelay
	if retryMax <= 0 {
		retryMax = defaultRetryMax
	}
	if retryMax < retryBase {
		retryMax = retryBase
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		handlers:         params.Handlers,
		publisherFactory: params.PublisherFactory,
		guard:            params.Guard,
		metrics:          params.Metrics,
		pingers:          params.Pingers,
		batchSize:        batch,
		maxAttempts:      maxAttempts,
		pollInterval:     time.Duration(pollMs) * time.Millisecond,
		retryBase:        retryBase,
		retryMax:         retryMax,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	for name, ping := range s.pingers {
		if err := pingDependency(ctx, s.logg, name, ping); err != nil {
			return err
		}
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	if interval <= 0 {
		interval = time.Duration(defaultPollMs) * time.Millisecond
	}
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		result, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		if result.stalled() {
			backoff = nextBackoff(backoff, interval, maxBackoff)
			s.logg.Warn(s.logg.WithField(ctx, "backoff_ms", backoff.Milliseconds()), "no outbox deliveries succeeded, backing off")
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if result.claimed > 0 {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch claims due rows under a short lease, delivers them with no
// transaction open, and records each outcome in its own transaction.
func (s *Service) processBatch(ctx context.Context) (batchResult, error) {
	var result batchResult
	events, err := s.claim(ctx)
	if err != nil {
		return result, err
	}
	s.metrics.Batch(len(events))
	result.claimed = len(events)

	for _, event := range events {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := s.deliver(ctx, event, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Service) claim(ctx context.Context) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts, now)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := s.repo.LeaseTx(tx, ids, now.Add(leaseDuration)); err != nil {
			return fmt.Errorf("lease outbox rows: %w", err)
		}
		events = rows
		return nil
	})
	return events, err
}

func (s *Service) deliver(ctx context.Context, event models.OutboxEvent, result *batchResult) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		result.deadLettered++
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "", nil)
		})
	}

	sink := sinkName(event, resolved)
	fields := s.eventFields(event, resolved.Envelope, sink)
	dispatchErr := s.dispatch(ctx, event, resolved)
	if dispatchErr == nil {
		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.MarkPublishedTx(tx, event.ID)
		}); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		result.delivered++
		s.metrics.Dispatched(string(event.EventType), metrics.OutboxOutcomePublished)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(dispatchErr, &nonRetry) {
		result.deadLettered++
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, dispatchErr, sink, fields)
		})
	}

	nextAttempt := event.AttemptCount + 1
	fields["attempt_count"] = nextAttempt
	if nextAttempt >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		terminalErr := fmt.Errorf("max delivery attempts reached: %w", dispatchErr)
		result.deadLettered++
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, sink, fields)
		})
	}

	retryAt := s.now().Add(s.retryDelay(nextAttempt))
	fields["next_attempt_at"] = retryAt.Format(time.RFC3339)
	ctxWithFields := s.logg.WithFields(ctx, fields)
	ctxWithFields = s.logg.WithField(ctxWithFields, "error", dispatchErr.Error())
	s.logg.Warn(ctxWithFields, "outbox delivery failed")
	if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.MarkFailedTx(tx, event.ID, dispatchErr, retryAt)
	}); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	result.retried++
	s.metrics.Dispatched(string(event.EventType), metrics.OutboxOutcomeRetry)
	return nil
}

// retryDelay is the wait before attempt n+1 after n failures: the base delay
// doubled per earlier failure, capped at retryMax.
func (s *Service) retryDelay(failures int) time.Duration {
	delay := s.retryBase
	for i := 1; i < failures && delay < s.retryMax; i++ {
		delay *= 2
	}
	if delay > s.retryMax {
		return s.retryMax
	}
	return delay
}

// dispatch routes an event to its handler or its Pub/Sub topic. Events with
// neither are acknowledged so they do not pile up when Pub/Sub is disabled.
func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	if handler, ok := s.handlers[event.EventType]; ok && handler != nil {
		handleCtx, cancel := context.WithTimeout(ctx, defaultHandleTimeout)
		defer cancel()
		return handler.Handle(handleCtx, resolved)
	}
	topic := resolved.Descriptor.Topic
	if topic == "" || s.publisherFactory == nil {
		s.logg.Debug(s.logg.WithField(ctx, "event_type", event.EventType), "no sink configured, acknowledging event")
		return nil
	}
	return s.publishResolved(ctx, event, resolved)
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, sink string, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{}, sink)
	}
	fields["error_reason"] = reason
	ctxWithFields := s.logg.WithFields(ctx, fields)
	ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox event will not be retried")

	dlqEntry := models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  dlqErrorMessage(err),
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if dlqErr := s.dlq.InsertTx(tx, dlqEntry); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.metrics.Dispatched(string(event.EventType), metrics.OutboxOutcomeDLQ)
	return nil
}

func dlqErrorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	eventID := resolved.Envelope.EventID
	if s.guard != nil && eventID != "" {
		delivered, err := s.guard.Claim(ctx, topic, eventID)
		if err != nil {
			return fmt.Errorf("claim delivery: %w", err)
		}
		if delivered {
			s.logg.Info(s.logg.WithField(ctx, "event_id", eventID), "event already published, acknowledging")
			return nil
		}
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID,
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	err := func() error {
		result := pub.Publish(publishCtx, msg)
		if result == nil {
			return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
		}
		if _, err := result.Get(publishCtx); err != nil {
			if pubsub.IsPermanent(err) {
				return registry.NewNonRetryableError(err)
			}
			return err
		}
		return nil
	}()
	if err != nil && s.guard != nil && eventID != "" {
		if releaseErr := s.guard.Release(ctx, topic, eventID); releaseErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", releaseErr.Error()), "failed to release delivery claim")
		}
	}
	return err
}

func sinkName(event models.OutboxEvent, resolved *registry.ResolvedEvent) string {
	if resolved != nil && resolved.Descriptor.Topic != "" {
		return resolved.Descriptor.Topic
	}
	return "handler:" + string(event.EventType)
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, sink string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if sink != "" {
		fields["sink"] = sink
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPubPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
)

const defaultBacklogWarnThreshold = 100

type OutboxBacklogJobParams struct {
	Logger        *logger.Logger
	Outbox        pendingCounter
	Metrics       *metrics.OutboxMetrics
	WarnThreshold int64
}

type pendingCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

// NewOutboxBacklogJob exports the number of unpublished outbox rows and warns
// when orders pile up waiting for the orders service.
func NewOutboxBacklogJob(params OutboxBacklogJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	threshold := params.WarnThreshold
	if threshold <= 0 {
		threshold = defaultBacklogWarnThreshold
	}
	return &outboxBacklogJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		threshold: threshold,
	}, nil
}

type outboxBacklogJob struct {
	logg      *logger.Logger
	outbox    pendingCounter
	metrics   *metrics.OutboxMetrics
	threshold int64
}

func (j *outboxBacklogJob) Name() string { return "outbox-backlog" }

func (j *outboxBacklogJob) Run(ctx context.Context) error {
	pending, err := j.outbox.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending outbox rows: %w", err)
	}
	j.metrics.Pending(pending)
	logCtx := j.logg.WithField(ctx, "pending", pending)
	if pending >= j.threshold {
		j.logg.Warn(logCtx, "outbox backlog above threshold")
		return nil
	}
	j.logg.Debug(logCtx, "outbox backlog checked")
	return nil
}

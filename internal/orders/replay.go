package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/registry"
)

// Replayer re-sends locally saved orders to the orders service. It handles
// order_submitted outbox events.
type Replayer struct {
	repo      Repository
	submitter Submitter
	logg      *logger.Logger
	now       func() time.Time
}

// NewReplayer builds the order_submitted handler.
func NewReplayer(repo Repository, submitter Submitter, logg *logger.Logger) (*Replayer, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("orders submitter required")
	}
	if logg == nil {
		logg = logger.Discard()
	}
	return &Replayer{
		repo:      repo,
		submitter: submitter,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Handle implements the outbox handler contract. Network failures and
// retryable statuses come back as plain errors so the row is retried; a
// refusal from the orders service is final. No transaction is held across the
// remote call; MarkSynced only moves orders still in pending_sync.
func (r *Replayer) Handle(ctx context.Context, event *registry.ResolvedEvent) error {
	payload, ok := event.Payload.(*payloads.OrderSubmittedEvent)
	if !ok || payload == nil {
		return registry.NewNonRetryableError(fmt.Errorf("unexpected payload %T for order replay", event.Payload))
	}
	return r.Replay(ctx, nil, payload.OrderID)
}

// Replay submits one pending_sync order and records its remote id.
func (r *Replayer) Replay(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := r.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	ctx = r.logg.WithOrderID(ctx, orderID.String())

	order, err := repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return registry.NewNonRetryableError(fmt.Errorf("order %s not found", orderID))
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order.Status != enums.OrderStatusPendingSync {
		r.logg.Info(ctx, "order already synced, skipping replay")
		return nil
	}

	remote, err := r.submitter.Create(ctx, SubmissionFromOrder(order))
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return registry.NewNonRetryableError(err)
		}
		return err
	}

	synced, err := repo.MarkSynced(ctx, orderID, remote.ID, r.now())
	if err != nil {
		return fmt.Errorf("mark order synced: %w", err)
	}
	if synced {
		r.logg.Info(r.logg.WithField(ctx, "remote_id", remote.ID), "local order synced")
	}
	return nil
}

package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/registry"
)

type replaySubmitter struct {
	remote *RemoteOrder
	err    error
	calls  []Submission
}

func (s *replaySubmitter) Create(_ context.Context, submission Submission) (*RemoteOrder, error) {
	s.calls = append(s.calls, submission)
	return s.remote, s.err
}

func TestReplaySyncsPendingOrder(t *testing.T) {
	conn := openOrdersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := sampleOrder(enums.OrderStatusPendingSync, enums.OrderSourceLocal, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))

	submitter := &replaySubmitter{remote: &RemoteOrder{ID: "1042"}}
	replayer, err := NewReplayer(repo, submitter, logger.Discard())
	require.NoError(t, err)

	resolved := &registry.ResolvedEvent{Payload: &payloads.OrderSubmittedEvent{OrderID: order.ID}}
	require.NoError(t, replayer.Handle(ctx, resolved))

	require.Len(t, submitter.calls, 1)
	assert.Equal(t, order.ID.String(), submitter.calls[0].OrderID, "local id doubles as the idempotency key")
	assert.Len(t, submitter.calls[0].Items, 2)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReceived, stored.Status)
	require.NotNil(t, stored.RemoteID)
	assert.Equal(t, "1042", *stored.RemoteID)
	assert.NotNil(t, stored.SyncedAt)
	assert.Equal(t, enums.OrderSourceLocal, stored.Source)

	// A second delivery of the same event is a no-op.
	require.NoError(t, replayer.Handle(ctx, resolved))
	assert.Len(t, submitter.calls, 1)
}

func TestReplayErrorClassification(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		nonRetryable bool
	}{
		{name: "network", err: &TransportError{Op: "post order", Err: errors.New("connection refused")}},
		{name: "server error", err: &StatusError{Status: 502}},
		{name: "throttled", err: &StatusError{Status: 429}},
		{name: "rejected", err: &StatusError{Status: 422, Body: "producto inexistente"}, nonRetryable: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := openOrdersDB(t)
			repo := NewRepository(conn)
			ctx := context.Background()
			order := sampleOrder(enums.OrderStatusPendingSync, enums.OrderSourceLocal, time.Now().UTC())
			require.NoError(t, repo.Create(ctx, order))

			replayer, err := NewReplayer(repo, &replaySubmitter{err: tc.err}, nil)
			require.NoError(t, err)

			err = replayer.Replay(ctx, nil, order.ID)
			require.Error(t, err)
			var nonRetry registry.NonRetryableError
			assert.Equal(t, tc.nonRetryable, errors.As(err, &nonRetry))

			stored, err := repo.FindByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, enums.OrderStatusPendingSync, stored.Status)
		})
	}
}

func TestReplayMissingOrderAndBadPayload(t *testing.T) {
	conn := openOrdersDB(t)
	replayer, err := NewReplayer(NewRepository(conn), &replaySubmitter{}, nil)
	require.NoError(t, err)

	var nonRetry registry.NonRetryableError
	err = replayer.Handle(context.Background(), &registry.ResolvedEvent{Payload: &payloads.OrderSubmittedEvent{}})
	assert.True(t, errors.As(err, &nonRetry))

	err = replayer.Handle(context.Background(), &registry.ResolvedEvent{Payload: &payloads.OrderCreatedEvent{}})
	assert.True(t, errors.As(err, &nonRetry))
}

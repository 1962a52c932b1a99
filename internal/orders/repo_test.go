package orders

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/db/dbtest"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openOrdersDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t, &models.Order{}, &models.OrderLineItem{})
}

func sampleOrder(status enums.OrderStatus, source enums.OrderSource, createdAt time.Time) *models.Order {
	return &models.Order{
		Source:        source,
		Status:        status,
		PaymentMethod: enums.PaymentMethodWebpay,
		ShippingAddress: types.ShippingAddress{
			Recipient: "Ana Pérez",
			Region:    "Región Metropolitana de Santiago",
			Comuna:    "Ñuñoa",
		},
		Subtotal:     4000,
		IVA:          760,
		ShippingCost: 3990,
		Total:        8750,
		TotalItems:   3,
		Lines: []models.OrderLineItem{
			{ProductID: "A", ProductName: "Filtro", UnitPrice: 1000, Quantity: 2, LineTotal: 2000},
			{ProductID: "B", ProductName: "Foco", UnitPrice: 2000, Quantity: 1, LineTotal: 2000},
		},
		CreatedAt: createdAt,
	}
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(openOrdersDB(t))
	ctx := context.Background()

	order := sampleOrder(enums.OrderStatusReceived, enums.OrderSourceRemote, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))
	require.NotEqual(t, uuid.Nil, order.ID)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	require.Equal(t, "Ñuñoa", got.ShippingAddress.Comuna)
	require.Equal(t, int64(8750), got.Total)

	_, err = repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	repo := NewRepository(openOrdersDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		source := enums.OrderSourceRemote
		if i%2 == 0 {
			source = enums.OrderSourceLocal
		}
		order := sampleOrder(enums.OrderStatusReceived, source, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, order))
		created = append(created, order.ID)
	}

	page, next, err := repo.List(ctx, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, created[4], page[0].ID)
	require.Equal(t, created[3], page[1].ID)
	require.NotNil(t, next)

	page, next, err = repo.List(ctx, ListParams{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, created[2], page[0].ID)

	page, next, err = repo.List(ctx, ListParams{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, created[0], page[0].ID)
	require.Nil(t, next)

	local := enums.OrderSourceLocal
	page, _, err = repo.List(ctx, ListParams{Source: &local})
	require.NoError(t, err)
	require.Len(t, page, 3)
}

func TestRepositoryStatusAndSync(t *testing.T) {
	repo := NewRepository(openOrdersDB(t))
	ctx := context.Background()

	order := sampleOrder(enums.OrderStatusPendingSync, enums.OrderSourceLocal, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))

	synced, err := repo.MarkSynced(ctx, order.ID, "R-100", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, synced)

	again, err := repo.MarkSynced(ctx, order.ID, "R-200", time.Now().UTC())
	require.NoError(t, err)
	require.False(t, again, "second sync is a no-op")

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusReceived, got.Status)
	require.NotNil(t, got.RemoteID)
	require.Equal(t, "R-100", *got.RemoteID)
	require.NotNil(t, got.SyncedAt)
	require.Equal(t, enums.OrderSourceLocal, got.Source)

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped))
	require.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), enums.OrderStatusShipped), gorm.ErrRecordNotFound)
}

package catalog

import (
	"context"
	"testing"

	"github.com/angelmondragon/autoparts-backend/pkg/db/dbtest"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestRepositoryUpsertAndList(t *testing.T) {
	conn := dbtest.Open(t, &models.Product{})
	repo := NewRepository(conn)
	ctx := context.Background()

	pos, err := repo.MaxPosition(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(-1), pos)

	require.NoError(t, repo.Upsert(ctx, []models.Product{
		{ID: "B1", Name: "Batería", Price: 89990, Stock: 2, Category: "Baterías", Tags: pq.StringArray{"12v"}, Images: pq.StringArray{"https://img/b1.jpg"}, IsActive: true, Position: 0},
		{ID: "F1", Name: "Filtro", Price: 5990, Stock: 10, Category: "Filtros", IsActive: true, Position: 1},
	}))

	require.NoError(t, repo.Upsert(ctx, []models.Product{
		{ID: "B1", Name: "Batería 60Ah", Price: 79990, Stock: 5, Images: pq.StringArray{"https://img/b1-new.jpg"}, IsActive: true, Position: 9},
	}))

	got, err := repo.FindByID(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, "Batería 60Ah", got.Name)
	require.Equal(t, int64(79990), got.Price)
	require.Equal(t, 5, got.Stock)
	require.Equal(t, pq.StringArray{"https://img/b1-new.jpg"}, got.Images)
	require.Equal(t, "Baterías", got.Category, "category is not an imported column")
	require.Equal(t, int64(0), got.Position, "position of existing rows is kept")

	list, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "B1", list[0].ID)

	byID, err := repo.FindByIDs(ctx, []string{"F1", "missing"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	require.Equal(t, "Filtro", byID["F1"].Name)

	pos, err = repo.MaxPosition(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pos)
}

func TestDBSourceFeedsNormalizer(t *testing.T) {
	conn := dbtest.Open(t, &models.Product{})
	repo := NewRepository(conn)
	ctx := context.Background()
	offer := int64(4000)
	require.NoError(t, repo.Upsert(ctx, []models.Product{
		{ID: "L1", Name: "Aceite 5W30", Price: 5000, OfferPrice: &offer, Category: "aceites", IsActive: true},
		{ID: "L2", Name: "Descontinuado", Price: 1, IsActive: false, Position: 1},
	}))

	raws, err := NewDBSource(repo).List(ctx)
	require.NoError(t, err)
	require.Len(t, raws, 1)

	p := NewNormalizer(nil).Normalize(raws[0], 0)
	require.Equal(t, "Lubricantes", p.Category)
	require.True(t, p.IsOffer)
	require.Equal(t, float64(4000), p.Display.Final)
	require.NotNil(t, p.Display.DiscountPercentage)
	require.Equal(t, 20, *p.Display.DiscountPercentage)
}

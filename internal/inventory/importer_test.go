package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/autoparts-backend/internal/catalog"
	"github.com/angelmondragon/autoparts-backend/pkg/db"
	"github.com/angelmondragon/autoparts-backend/pkg/db/dbtest"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/payloads"
)

type fakeCache struct {
	calls int
	err   error
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

type importFixture struct {
	conn     *gorm.DB
	products *catalog.Repository
	prober   *fakeProber
	cache    *fakeCache
	importer *Importer
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	conn := dbtest.Open(t, &models.Product{}, &models.OutboxEvent{})
	products := catalog.NewRepository(conn)
	prober := newFakeProber()
	cache := &fakeCache{}
	importer, err := NewImporter(ImporterParams{
		Tx:          db.FromGorm(conn),
		Products:    products,
		Prober:      prober,
		Outbox:      outbox.NewService(outbox.NewRepository(conn), logger.Discard()),
		Cache:       cache,
		Concurrency: 2,
	})
	require.NoError(t, err)
	return &importFixture{conn: conn, products: products, prober: prober, cache: cache, importer: importer}
}

func (f *importFixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func TestImportCreatesAndUpdates(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	require.NoError(t, f.products.Upsert(ctx, []models.Product{
		{ID: "F-100", Name: "Filtro viejo", Price: 4990, Stock: 1, Category: "Filtros", IsActive: false, Position: 0},
	}))

	report, err := f.importer.Import(ctx, strings.NewReader(validCSV), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, []string{"F-100", "B-200"}, report.ProductIDs)
	assert.False(t, report.DryRun)

	updated, err := f.products.FindByID(ctx, "F-100")
	require.NoError(t, err)
	assert.Equal(t, "Filtro de aceite", updated.Name)
	assert.Equal(t, int64(5990), updated.Price)
	assert.Equal(t, 12, updated.Stock)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "Filtros", updated.Category)

	created, err := f.products.FindByID(ctx, "B-200")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Position, "new products go after the existing ones")
	assert.Equal(t, string(enums.CategoryOtros), created.Category)
	assert.Len(t, created.Images, 2)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventInventoryImported, events[0].EventType)
	assert.Equal(t, report.ImportID.String(), events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.InventoryImportedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, 1, payload.Created)
	assert.Equal(t, 1, payload.Updated)

	assert.Equal(t, 1, f.cache.calls)
}

func TestImportNegativeStockWritesNothing(t *testing.T) {
	f := newImportFixture(t)
	input := "id,nombre,descripcion,precio,stock,imagen\n" +
		"A-1,Ampolleta,,1000,5,https://cdn.example.com/a.jpg\n" +
		"A-2,Ampolleta LED,,2000,-1,https://cdn.example.com/b.jpg\n"

	report, err := f.importer.Import(context.Background(), strings.NewReader(input), Options{})
	require.Error(t, err)
	assert.Nil(t, report)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	problems, ok := details["errors"].([]RowError)
	require.True(t, ok)
	require.Len(t, problems, 1)
	assert.Equal(t, 3, problems[0].Line)
	assert.Equal(t, ColumnStock, problems[0].Column)

	assert.Zero(t, f.countRows(t, &models.Product{}))
	assert.Zero(t, f.countRows(t, &models.OutboxEvent{}))
	assert.Zero(t, f.cache.calls)
	assert.Empty(t, f.prober.calls, "images are not probed when rows are invalid")
}

func TestImportRejectsSmallImages(t *testing.T) {
	f := newImportFixture(t)
	f.prober.sizes["https://cdn.example.com/b200-b.jpg"] = Dimensions{Width: 640, Height: 120}

	_, err := f.importer.Import(context.Background(), strings.NewReader(validCSV), Options{})
	require.Error(t, err)
	problems := RowErrors(err)
	require.Len(t, problems, 1)
	assert.Equal(t, 3, problems[0].Line)
	assert.Contains(t, problems[0].Reason, "640x120")
	assert.Zero(t, f.countRows(t, &models.Product{}))
}

func TestImportDryRunReportsWithoutWriting(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()
	require.NoError(t, f.products.Upsert(ctx, []models.Product{
		{ID: "B-200", Name: "Batería", Price: 1, IsActive: true},
	}))

	report, err := f.importer.Import(ctx, strings.NewReader(validCSV), Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)

	assert.Equal(t, int64(1), f.countRows(t, &models.Product{}))
	assert.Zero(t, f.countRows(t, &models.OutboxEvent{}))
	assert.Zero(t, f.cache.calls)
}

func TestImportSucceedsWhenCacheInvalidationFails(t *testing.T) {
	f := newImportFixture(t)
	f.cache.err = errors.New("redis down")

	report, err := f.importer.Import(context.Background(), strings.NewReader(validCSV), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, int64(2), f.countRows(t, &models.Product{}))
}

func TestNewImporterRequiresDependencies(t *testing.T) {
	_, err := NewImporter(ImporterParams{})
	require.Error(t, err)
}

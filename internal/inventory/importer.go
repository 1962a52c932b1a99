package inventory

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/autoparts-backend/internal/catalog"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/payloads"
)

const defaultMinImageSide = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Options tune a single import.
type Options struct {
	// DryRun validates the file and reports what would change without writing.
	DryRun bool
}

// Report summarises a successful import.
type Report struct {
	ImportID   uuid.UUID `json:"importId,omitempty"`
	Rows       int       `json:"rows"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	ProductIDs []string  `json:"productIds"`
	DryRun     bool      `json:"dryRun"`
}

// ImporterParams wires the importer dependencies.
type ImporterParams struct {
	Tx             txRunner
	Products       *catalog.Repository
	Prober         ImageProber
	Outbox         outboxEmitter
	Cache          cacheInvalidator
	MinImageWidth  int
	MinImageHeight int
	Concurrency    int
	Metrics        *metrics.InventoryMetrics
	Logger         *logger.Logger
}

// Importer applies product CSV files to the catalog.
type Importer struct {
	tx          txRunner
	products    *catalog.Repository
	prober      ImageProber
	outbox      outboxEmitter
	cache       cacheInvalidator
	minWidth    int
	minHeight   int
	concurrency int
	metrics     *metrics.InventoryMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewImporter builds an importer.
func NewImporter(params ImporterParams) (*Importer, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case params.Prober == nil:
		return nil, fmt.Errorf("image prober required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox required")
	}
	minWidth, minHeight := params.MinImageWidth, params.MinImageHeight
	if minWidth <= 0 {
		minWidth = defaultMinImageSide
	}
	if minHeight <= 0 {
		minHeight = defaultMinImageSide
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Discard()
	}
	return &Importer{
		tx:          params.Tx,
		products:    params.Products,
		prober:      params.Prober,
		outbox:      params.Outbox,
		cache:       params.Cache,
		minWidth:    minWidth,
		minHeight:   minHeight,
		concurrency: params.Concurrency,
		metrics:     params.Metrics,
		logg:        logg,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Import validates the whole file and, when every row passes, upserts all
// rows in one transaction. A file with any bad row writes nothing and the
// returned validation error lists every problem with its line.
func (i *Importer) Import(ctx context.Context, r io.Reader, opts Options) (*Report, error) {
	rows, err := Parse(r)
	if err == nil {
		for _, rowErr := range checkImages(ctx, i.prober, rows, i.minWidth, i.minHeight, i.concurrency) {
			err = multierr.Append(err, rowErr)
		}
	}
	if err != nil {
		i.metrics.Import(metrics.ImportOutcomeRejected, 0, 0)
		problems := RowErrors(err)
		i.logg.Warn(i.logg.WithField(ctx, "errors", len(problems)), "inventory import rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "import file rejected").
			WithDetails(map[string]any{"errors": problems})
	}

	report := &Report{Rows: len(rows), DryRun: opts.DryRun, ProductIDs: make([]string, 0, len(rows))}
	for _, row := range rows {
		report.ProductIDs = append(report.ProductIDs, row.ID)
	}

	if opts.DryRun {
		existing, err := i.products.FindByIDs(ctx, report.ProductIDs)
		if err != nil {
			i.metrics.Import(metrics.ImportOutcomeFailed, 0, 0)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load existing products")
		}
		report.Created, report.Updated = countChanges(rows, existing)
		i.metrics.Import(metrics.ImportOutcomeDryRun, 0, 0)
		return report, nil
	}

	report.ImportID = uuid.New()
	ctx = i.logg.WithField(ctx, "import_id", report.ImportID.String())
	if err := i.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return i.apply(ctx, tx, rows, report)
	}); err != nil {
		i.metrics.Import(metrics.ImportOutcomeFailed, 0, 0)
		i.logg.Error(ctx, "inventory import failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply import")
	}
	i.metrics.Import(metrics.ImportOutcomeApplied, report.Created, report.Updated)

	if i.cache != nil {
		if err := i.cache.Invalidate(ctx); err != nil {
			i.logg.Error(ctx, "catalog cache invalidation failed", err)
		}
	}
	i.logg.Info(i.logg.WithFields(ctx, map[string]any{
		"created": report.Created,
		"updated": report.Updated,
	}), "inventory import applied")
	return report, nil
}

func (i *Importer) apply(ctx context.Context, tx *gorm.DB, rows []Row, report *Report) error {
	repo := i.products.WithTx(tx)
	existing, err := repo.FindByIDs(ctx, report.ProductIDs)
	if err != nil {
		return fmt.Errorf("load existing products: %w", err)
	}
	position, err := repo.MaxPosition(ctx)
	if err != nil {
		return fmt.Errorf("read max position: %w", err)
	}

	now := i.now()
	products := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		product, ok := existing[row.ID]
		if ok {
			report.Updated++
		} else {
			report.Created++
			position++
			product = models.Product{
				ID:        row.ID,
				Category:  string(enums.CategoryOtros),
				Position:  position,
				CreatedAt: now,
			}
		}
		product.Name = row.Name
		product.Description = row.Description
		product.Price = row.Price
		product.Stock = row.Stock
		product.Images = row.Images
		product.IsActive = true
		product.UpdatedAt = now
		products = append(products, product)
	}
	if err := repo.Upsert(ctx, products); err != nil {
		return fmt.Errorf("upsert products: %w", err)
	}

	return i.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryImported,
		AggregateType: enums.AggregateInventory,
		AggregateID:   report.ImportID.String(),
		Actor:         &outbox.ActorRef{Kind: "importer"},
		Data: payloads.InventoryImportedEvent{
			ImportID:   report.ImportID,
			Created:    report.Created,
			Updated:    report.Updated,
			ProductIDs: report.ProductIDs,
		},
		OccurredAt: now,
	})
}

func countChanges(rows []Row, existing map[string]models.Product) (created, updated int) {
	for _, row := range rows {
		if _, ok := existing[row.ID]; ok {
			updated++
		} else {
			created++
		}
	}
	return created, updated
}

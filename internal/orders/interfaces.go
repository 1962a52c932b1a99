package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) ([]models.Order, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	MarkSynced(ctx context.Context, id uuid.UUID, remoteID string, at time.Time) (bool, error)
}

// ListParams filters and pages the order history.
type ListParams struct {
	Limit  int
	Cursor *pagination.Cursor
	Status *enums.OrderStatus
	Source *enums.OrderSource
}

// Submitter sends orders to the remote orders service.
type Submitter interface {
	Create(ctx context.Context, submission Submission) (*RemoteOrder, error)
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes order reads and the support-side status update.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, input ListInput) (*OrderList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*OrderDTO, error)
}

// ListInput holds raw list filters from the API.
type ListInput struct {
	Pagination pagination.Params
	Status     string
	Source     string
}

type service struct {
	repo Repository
}

// NewService builds the order service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*OrderList, error) {
	params := ListParams{Limit: input.Pagination.Limit}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Invalid("cursor", err.Error())
	}
	params.Cursor = cursor

	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, pkgerrors.Invalid("status", err.Error())
		}
		params.Status = &status
	}
	if raw := strings.TrimSpace(input.Source); raw != "" {
		source := enums.OrderSource(raw)
		if source != enums.OrderSourceLocal && source != enums.OrderSourceRemote {
			return nil, pkgerrors.Invalid("source", "must be local or remote")
		}
		params.Source = &source
	}

	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, NewOrderDTO(&rows[i]))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// UpdateStatus is the only mutation allowed after creation. pending_sync is
// owned by the replay worker and terminal orders are frozen.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*OrderDTO, error) {
	status, err := enums.ParseOrderStatus(strings.TrimSpace(raw))
	if err != nil {
		return nil, pkgerrors.Invalid("status", err.Error())
	}
	if status == enums.OrderStatusPendingSync {
		return nil, pkgerrors.Invalid("status", "pending_sync is set by the system")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", order.Status)
	}
	if order.Status == enums.OrderStatusPendingSync {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been synced to the orders service yet")
	}

	if order.Status != status {
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		order.Status = status
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.Invalid("id", "is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/autoparts-backend/internal/cart"
	"github.com/angelmondragon/autoparts-backend/internal/orders"
	"github.com/angelmondragon/autoparts-backend/internal/shipping"
	pkgcheckout "github.com/angelmondragon/autoparts-backend/pkg/checkout"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox"
	"github.com/angelmondragon/autoparts-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

// SavedLocalMessage is returned when the order was kept for later sync.
const SavedLocalMessage = "saved locally; will sync when the orders service is reachable"

// Where an order ended up after Submit.
const (
	SavedRemote = "remote"
	SavedLocal  = "local"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service quotes carts and turns them into orders.
type Service interface {
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
	Submit(ctx context.Context, input SubmitInput) (*Result, error)
}

// QuoteInput identifies the cart and the optional destination.
type QuoteInput struct {
	CartID  uuid.UUID
	Address *types.ShippingAddress
}

// Quote is the priced cart.
type Quote struct {
	CartID   uuid.UUID          `json:"cartId"`
	Lines    []Line             `json:"lines"`
	Summary  Summary            `json:"summary"`
	Shipping *shipping.Estimate `json:"shipping,omitempty"`
}

// SubmitInput is what the shopper provides at checkout.
type SubmitInput struct {
	CartID        uuid.UUID
	Address       types.ShippingAddress
	PaymentMethod string `validate:"required"`
	CustomerEmail string `validate:"omitempty,email"`
}

// Result reports where the order was saved.
type Result struct {
	OrderID  uuid.UUID         `json:"orderId"`
	Saved    string            `json:"saved"`
	RemoteID string            `json:"remoteId,omitempty"`
	Status   enums.OrderStatus `json:"status"`
	Message  string            `json:"message,omitempty"`
	Summary  Summary           `json:"summary"`
}

// ServiceParams wires the checkout dependencies.
type ServiceParams struct {
	Tx        txRunner
	Carts     cart.CartRepository
	Orders    orders.Repository
	Products  cart.ProductLookup
	Submitter orders.Submitter
	Outbox    outboxEmitter
	Shipping  *shipping.Estimator
	TaxRate   decimal.Decimal
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	carts     cart.CartRepository
	orders    orders.Repository
	products  cart.ProductLookup
	submitter orders.Submitter
	outbox    outboxEmitter
	shipping  *shipping.Estimator
	taxRate   decimal.Decimal
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	validate  *validator.Validate
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product lookup required")
	case params.Submitter == nil:
		return nil, fmt.Errorf("orders submitter required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox required")
	}
	estimator := params.Shipping
	if estimator == nil {
		estimator = shipping.NewEstimator(nil)
	}
	rate := params.TaxRate
	if rate.IsZero() {
		rate = DefaultTaxRate
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Discard()
	}
	return &service{
		tx:        params.Tx,
		carts:     params.Carts,
		orders:    params.Orders,
		products:  params.Products,
		submitter: params.Submitter,
		outbox:    params.Outbox,
		shipping:  estimator,
		taxRate:   rate,
		metrics:   params.Metrics,
		logg:      logg,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.Invalid("cartId", "is required")
	}
	record, err := s.loadCart(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	lines := LinesFromCart(record)
	subtotal := Totals(lines, nil, s.taxRate).Subtotal
	estimate := s.shipping.EstimateFor(input.Address, subtotal)
	return &Quote{
		CartID:   input.CartID,
		Lines:    lines,
		Summary:  Totals(lines, estimate, s.taxRate),
		Shipping: estimate,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*Result, error) {
	method, err := s.validateInput(input)
	if err != nil {
		s.metrics.Observe(metrics.CheckoutOutcomeRejected, 0)
		return nil, err
	}
	ctx = s.logg.WithCartID(ctx, input.CartID.String())

	record, err := s.loadCart(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	if len(record.Items) == 0 {
		s.metrics.Observe(metrics.CheckoutOutcomeRejected, 0)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := s.checkStock(ctx, record); err != nil {
		s.metrics.Observe(metrics.CheckoutOutcomeRejected, 0)
		return nil, err
	}

	order := s.buildOrder(record, input, method)
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	remote, err := s.submitter.Create(ctx, orders.SubmissionFromOrder(order))
	switch {
	case err == nil:
		return s.saveRemote(ctx, order, remote)
	case orders.IsTransportError(err):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "orders service unreachable, saving order locally")
		return s.saveLocal(ctx, order)
	default:
		return nil, s.remoteFailure(ctx, err)
	}
}

func (s *service) validateInput(input SubmitInput) (enums.PaymentMethod, error) {
	if input.CartID == uuid.Nil {
		return "", pkgerrors.Invalid("cartId", "is required")
	}
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", pkgerrors.Invalid(validationField(verrs[0].Field()), verrs[0].Tag())
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout input")
	}
	if !input.Address.IsResolved() {
		return "", pkgerrors.Invalid("address.region", "is required")
	}
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(input.PaymentMethod))
	if err != nil {
		return "", pkgerrors.Invalid("paymentMethod", err.Error())
	}
	return method, nil
}

func validationField(name string) string {
	switch name {
	case "PaymentMethod":
		return "paymentMethod"
	case "CustomerEmail":
		return "email"
	default:
		return name
	}
}

func (s *service) loadCart(ctx context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.carts.FindByID(ctx, cartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CartRecord{ID: cartID}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return record, nil
}

func (s *service) checkStock(ctx context.Context, record *models.CartRecord) error {
	inputs := make([]pkgcheckout.StockValidationInput, 0, len(record.Items))
	for _, item := range record.Items {
		input := pkgcheckout.StockValidationInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Requested:   item.Quantity,
		}
		product, err := s.products.FindByID(ctx, item.ProductID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		default:
			input.Available = product.Stock
			input.Active = product.IsActive
		}
		inputs = append(inputs, input)
	}
	return pkgcheckout.ValidateStock(inputs)
}

func (s *service) buildOrder(record *models.CartRecord, input SubmitInput, method enums.PaymentMethod) *models.Order {
	lines := LinesFromCart(record)
	subtotal := Totals(lines, nil, s.taxRate).Subtotal
	address := input.Address
	estimate := s.shipping.Estimate(address, subtotal)
	summary := Totals(lines, &estimate, s.taxRate)

	cartID := record.ID
	order := &models.Order{
		ID:              uuid.New(),
		CartID:          &cartID,
		CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
		PaymentMethod:   method,
		ShippingAddress: address,
		ShippingLabel:   estimate.Label,
		ShippingCarrier: estimate.Carrier,
		ShippingETA:     estimate.ETA,
		Subtotal:        summary.Subtotal,
		IVA:             summary.IVA,
		ShippingCost:    summary.ShippingCost,
		Total:           summary.Total,
		TotalItems:      summary.TotalItems,
		CreatedAt:       s.now(),
	}
	for _, line := range lines {
		order.Lines = append(order.Lines, models.OrderLineItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   line.Total(),
		})
	}
	return order
}

// saveRemote keeps a local copy of an order the orders service accepted. The
// order exists remotely even if the copy fails, so that failure is logged,
// the cart is still emptied and the shopper still gets the confirmation.
func (s *service) saveRemote(ctx context.Context, order *models.Order, remote *orders.RemoteOrder) (*Result, error) {
	syncedAt := s.now()
	remoteID := remote.ID
	order.Source = enums.OrderSourceRemote
	order.Status = enums.OrderStatusReceived
	if status, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(remote.Status))); err == nil && status != enums.OrderStatusPendingSync {
		order.Status = status
	}
	order.RemoteID = &remoteID
	order.SyncedAt = &syncedAt

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Actor:         &outbox.ActorRef{Kind: "cart", ID: order.CartID.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				RemoteID:   remoteID,
				Source:     order.Source,
				Status:     order.Status,
				Total:      order.Total,
				TotalItems: order.TotalItems,
				Email:      order.CustomerEmail,
			},
		}); err != nil {
			return fmt.Errorf("emit order_created: %w", err)
		}
		return s.carts.WithTx(tx).DeleteItems(ctx, *order.CartID)
	})
	if err != nil {
		s.logg.Error(ctx, "order accepted remotely but local copy failed", err)
		// The order exists remotely; a full cart invites a second submission.
		if clearErr := s.carts.DeleteItems(ctx, *order.CartID); clearErr != nil {
			s.logg.Error(ctx, "clear cart after remote order failed", clearErr)
		}
	}

	s.metrics.Observe(metrics.CheckoutOutcomeRemote, order.Total)
	s.logg.Info(s.logg.WithField(ctx, "remote_id", remoteID), "order submitted")
	return &Result{
		OrderID:  order.ID,
		Saved:    SavedRemote,
		RemoteID: remoteID,
		Status:   order.Status,
		Summary:  summaryOf(order),
	}, nil
}

// saveLocal writes the order and its order_submitted event together so the
// replay worker always finds what it has to send.
func (s *service) saveLocal(ctx context.Context, order *models.Order) (*Result, error) {
	order.Source = enums.OrderSourceLocal
	order.Status = enums.OrderStatusPendingSync

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderSubmitted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Actor:         &outbox.ActorRef{Kind: "cart", ID: order.CartID.String()},
			Data: payloads.OrderSubmittedEvent{
				OrderID:     order.ID,
				Total:       order.Total,
				TotalItems:  order.TotalItems,
				SubmittedAt: order.CreatedAt,
			},
		}); err != nil {
			return fmt.Errorf("emit order_submitted: %w", err)
		}
		return s.carts.WithTx(tx).DeleteItems(ctx, *order.CartID)
	})
	if err != nil {
		s.metrics.Observe(metrics.CheckoutOutcomeFailed, 0)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save order locally")
	}

	s.metrics.Observe(metrics.CheckoutOutcomeLocal, order.Total)
	s.logg.Info(ctx, "order saved locally for replay")
	return &Result{
		OrderID: order.ID,
		Saved:   SavedLocal,
		Status:  order.Status,
		Message: SavedLocalMessage,
		Summary: summaryOf(order),
	}, nil
}

// remoteFailure maps an answer from the orders service. These never fall
// back to the outbox: the service saw the order and refused it.
func (s *service) remoteFailure(ctx context.Context, err error) error {
	var statusErr *orders.StatusError
	if errors.As(err, &statusErr) {
		details := map[string]any{"status": statusErr.Status}
		if statusErr.Body != "" {
			details["body"] = statusErr.Body
		}
		if statusErr.Status >= 400 && statusErr.Status < 500 && !statusErr.Retryable() {
			s.metrics.Observe(metrics.CheckoutOutcomeRejected, 0)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "orders service rejected the order").WithDetails(details)
		}
		s.metrics.Observe(metrics.CheckoutOutcomeFailed, 0)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "orders service failed").WithDetails(details)
	}
	s.metrics.Observe(metrics.CheckoutOutcomeFailed, 0)
	s.logg.Error(ctx, "order submission failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit order")
}

func summaryOf(order *models.Order) Summary {
	return Summary{
		Subtotal:     order.Subtotal,
		IVA:          order.IVA,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		TotalItems:   order.TotalItems,
	}
}

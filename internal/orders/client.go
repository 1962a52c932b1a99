package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/types"
)

const responseBodyReadLimit int64 = 4096

// Submission is the order payload accepted by the orders service.
type Submission struct {
	OrderID       string                `json:"orderId"`
	Items         []SubmissionItem      `json:"items"`
	Subtotal      int64                 `json:"subtotal"`
	IVA           int64                 `json:"iva"`
	ShippingCost  int64                 `json:"envio"`
	Total         int64                 `json:"total"`
	TotalItems    int                   `json:"totalItems"`
	Address       types.ShippingAddress `json:"direccion"`
	PaymentMethod string                `json:"metodoPago"`
	Email         string                `json:"email,omitempty"`
	CreatedAt     time.Time             `json:"fecha"`
}

// SubmissionItem is one order line on the wire.
type SubmissionItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"nombre"`
	UnitPrice int64  `json:"precio"`
	Quantity  int    `json:"cantidad"`
}

// SubmissionFromOrder builds the wire payload for a stored order.
func SubmissionFromOrder(order *models.Order) Submission {
	items := make([]SubmissionItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, SubmissionItem{
			ProductID: line.ProductID,
			Name:      line.ProductName,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	return Submission{
		OrderID:       order.ID.String(),
		Items:         items,
		Subtotal:      order.Subtotal,
		IVA:           order.IVA,
		ShippingCost:  order.ShippingCost,
		Total:         order.Total,
		TotalItems:    order.TotalItems,
		Address:       order.ShippingAddress,
		PaymentMethod: order.PaymentMethod.String(),
		Email:         order.CustomerEmail,
		CreatedAt:     order.CreatedAt.UTC(),
	}
}

// RemoteOrder is the orders service's acknowledgement.
type RemoteOrder struct {
	ID     string
	Status string
}

// TransportError means the request never got an HTTP response: DNS, refused
// connection, TLS, timeout. Only these trigger the local fallback.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("orders service %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx answer from the orders service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("orders service returned %d: %s", e.Status, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// IsTransportError reports whether err is a network failure talking to the orders service.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client talks to the remote orders service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds an orders service client from the services config.
func NewClient(cfg config.ServicesConfig, opts ...ClientOption) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.OrdersBaseURL), "/")
	if base == "" {
		return nil, errors.New("orders service url required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("orders service url: %w", err)
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &Client{baseURL: base, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Create posts the order. The local order id doubles as the idempotency key
// so a replayed submission is not duplicated upstream.
func (c *Client) Create(ctx context.Context, submission Submission) (*RemoteOrder, error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("marshal order submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if submission.OrderID != "" {
		req.Header.Set("Idempotency-Key", submission.OrderID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "create order", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, &TransportError{Op: "read order response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var ack struct {
		ID     json.RawMessage `json:"id"`
		Status string          `json:"status"`
		Estado string          `json:"estado"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &ack); err != nil {
			return nil, fmt.Errorf("decode order response: %w", err)
		}
	}
	remote := &RemoteOrder{ID: rawID(ack.ID), Status: ack.Status}
	if remote.Status == "" {
		remote.Status = ack.Estado
	}
	if remote.ID == "" {
		remote.ID = submission.OrderID
	}
	return remote, nil
}

// rawID accepts string or numeric ids.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"golang.org/x/time/rate"
)

// Source yields raw product records in insertion order.
type Source interface {
	List(ctx context.Context) ([]RawProduct, error)
}

type productLister interface {
	ListActive(ctx context.Context) ([]models.Product, error)
}

// DBSource reads the local products table.
type DBSource struct {
	repo productLister
}

func NewDBSource(repo productLister) *DBSource {
	return &DBSource{repo: repo}
}

func (s *DBSource) List(ctx context.Context) ([]RawProduct, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]RawProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, RawFromModel(row))
	}
	return out, nil
}

// RawFromModel maps a stored product onto the raw shape so stored and remote
// products go through the same normalizer.
func RawFromModel(m models.Product) RawProduct {
	price := float64(m.Price)
	raw := RawProduct{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		PrecioNormal: &price,
		Stock:        m.Stock,
		Category:     m.Category,
		Tags:         append([]string(nil), m.Tags...),
		Images:       append([]string(nil), m.Images...),
		IsOffer:      m.IsOffer,
		Featured:     m.IsFeatured,
		Active:       &m.IsActive,
	}
	if m.OfferPrice != nil {
		offer := float64(*m.OfferPrice)
		raw.PrecioOferta = &offer
	}
	return raw
}

const maxProductsPayload = 8 << 20

// RemoteSource reads the external products service, throttled client side.
type RemoteSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logg    *logger.Logger
}

// NewRemoteSource builds a products service client. A nil client gets one
// with the configured timeout.
func NewRemoteSource(cfg config.ServicesConfig, client *http.Client, logg *logger.Logger) (*RemoteSource, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.ProductsBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("products service url required")
	}
	if client == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.ProductsRPS > 0 {
		limit = rate.Limit(cfg.ProductsRPS)
	}
	burst := cfg.ProductsBurst
	if burst <= 0 {
		burst = 1
	}
	if logg == nil {
		logg = logger.Discard()
	}
	return &RemoteSource{
		baseURL: base,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logg:    logg,
	}, nil
}

func (s *RemoteSource) List(ctx context.Context) ([]RawProduct, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "products service throttled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/products", nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build products request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "products service unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProductsPayload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read products response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "products service returned %d", resp.StatusCode)
	}

	products, rejected, err := DecodeRawProducts(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "products service returned an invalid payload")
	}
	for _, de := range rejected {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"field":  de.Field,
			"reason": de.Reason,
		}), "skipping unreadable product record")
	}
	return products, nil
}

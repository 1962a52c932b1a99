package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// VersionCounterName is the shared counter bumped whenever the catalog changes.
const VersionCounterName = "catalog_version"

const (
	defaultCacheSize = 16
	defaultCacheTTL  = time.Minute
)

// VersionStore exposes a shared monotonic counter so every API instance
// notices an invalidation.
type VersionStore interface {
	Counter(ctx context.Context, name string) (int64, error)
	BumpCounter(ctx context.Context, name string) (int64, error)
}

// ServiceParams wires the catalog read service.
type ServiceParams struct {
	Source    Source
	Versions  VersionStore
	Metrics   *metrics.CatalogMetrics
	Logger    *logger.Logger
	CacheSize int
	CacheTTL  time.Duration
}

type cacheEntry struct {
	products  []Product
	expiresAt time.Time
}

// Service serves normalized catalog reads from a TTL'd LRU keyed by catalog version.
type Service struct {
	source   Source
	versions VersionStore
	metrics  *metrics.CatalogMetrics
	logg     *logger.Logger
	cache    *lru.Cache[string, cacheEntry]
	ttl      time.Duration
	loads    singleflight.Group
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	size := params.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("catalog cache: %w", err)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Discard()
	}
	return &Service{
		source:   params.Source,
		versions: params.Versions,
		metrics:  params.Metrics,
		logg:     logg,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Products returns every active normalized product in insertion order.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	key := s.cacheKey(ctx)
	if entry, ok := s.cache.Get(key); ok {
		if s.now().Before(entry.expiresAt) {
			s.metrics.CacheHit()
			return entry.products, nil
		}
		s.cache.Remove(key)
	}
	s.metrics.CacheMiss()

	// The load is shared by every waiter, so one caller going away must not
	// cancel it for the rest.
	loadCtx := context.WithoutCancel(ctx)
	loaded, err, _ := s.loads.Do(key, func() (any, error) {
		products, err := s.load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, cacheEntry{products: products, expiresAt: s.now().Add(s.ttl)})
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return loaded.([]Product), nil
}

func (s *Service) load(ctx context.Context) ([]Product, error) {
	raws, err := s.source.List(ctx)
	if err != nil {
		return nil, err
	}
	normalizer := NewNormalizer(func(productID, category string) {
		s.metrics.UnmappedCategory(category)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"product_id": productID,
			"category":   category,
		}), "product category not mapped to a canonical category")
	})

	all := normalizer.NormalizeAll(raws)
	active := make([]Product, 0, len(all))
	for _, p := range all {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

// Search runs the filter/sort/paginate pipeline over the cached catalog.
func (s *Service) Search(ctx context.Context, q Query) (Result, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return Result{}, err
	}
	return Run(products, q), nil
}

// Facets summarises the catalog for the given filters.
func (s *Service) Facets(ctx context.Context, q Query) (Facets, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return Facets{}, err
	}
	return ComputeFacets(products, q), nil
}

// Get returns one active product by id.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.Invalid("id", "is required")
	}
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			p := products[i]
			return &p, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", id)
}

// Invalidate drops cached catalogs here and, through the version counter,
// on every other instance.
func (s *Service) Invalidate(ctx context.Context) error {
	s.cache.Purge()
	if s.versions == nil {
		return nil
	}
	if _, err := s.versions.BumpCounter(ctx, VersionCounterName); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump catalog version")
	}
	return nil
}

func (s *Service) cacheKey(ctx context.Context) string {
	if s.versions == nil {
		return "catalog:local"
	}
	version, err := s.versions.Counter(ctx, VersionCounterName)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logg.Warn(ctx, "catalog version lookup failed; using local cache key")
		}
		return "catalog:local"
	}
	return "catalog:v" + strconv.FormatInt(version, 10)
}

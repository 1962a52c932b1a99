package controllers

import (
	"context"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/autoparts-backend/api/responses"
	"github.com/angelmondragon/autoparts-backend/api/validators"
	"github.com/angelmondragon/autoparts-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
)

const (
	maxSearchTermLen = 100
	maxFilterLen     = 64
)

// CatalogReader is the read surface of the catalog service.
type CatalogReader interface {
	Search(ctx context.Context, q catalog.Query) (catalog.Result, error)
	Facets(ctx context.Context, q catalog.Query) (catalog.Facets, error)
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

// CatalogProducts returns one page of the filtered, sorted catalog. Out of
// range pages are clamped rather than rejected.
func CatalogProducts(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		query, err := parseCatalogQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Search(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CatalogFacets returns category and tag counts for the current search.
func CatalogFacets(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		query, err := parseCatalogQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facets, err := svc.Facets(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, facets)
	}
}

func CatalogProduct(svc CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		product, err := svc.Get(r.Context(), validators.SanitizeString(chi.URLParam(r, "productId"), maxFilterLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseCatalogQuery(r *http.Request) (catalog.Query, error) {
	values := r.URL.Query()

	sortOption, err := catalog.ParseSortOption(values.Get("sort"))
	if err != nil {
		return catalog.Query{}, pkgerrors.Invalid("sort", "must be one of featured, price_asc, price_desc, recent")
	}

	page, err := validators.ParseQueryInt(r, "page", 1, math.MinInt32, math.MaxInt32)
	if err != nil {
		return catalog.Query{}, err
	}

	return catalog.Query{
		SearchTerm: validators.SanitizeString(values.Get("q"), maxSearchTermLen),
		Category:   validators.SanitizeString(values.Get("category"), maxFilterLen),
		Tags:       validators.ParseQueryList(r, "tags", maxFilterLen),
		Sort:       sortOption,
		Page:       page,
	}, nil
}

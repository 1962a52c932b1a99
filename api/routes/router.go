package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/autoparts-backend/api/controllers"
	"github.com/angelmondragon/autoparts-backend/api/middleware"
	"github.com/angelmondragon/autoparts-backend/internal/cart"
	"github.com/angelmondragon/autoparts-backend/internal/checkout"
	"github.com/angelmondragon/autoparts-backend/internal/orders"
	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/logger"
	"github.com/angelmondragon/autoparts-backend/pkg/redis"
)

type redisStore interface {
	redis.IdempotencyStore
	redis.RateLimiter
}

// RouterParams wires the API surface.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	Checks    map[string]controllers.Pinger
	Redis     redisStore
	Gatherer  prometheus.Gatherer
	Catalog   controllers.CatalogReader
	Shipping  controllers.ShippingQuoter
	Carts     cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Inventory controllers.InventoryImporter
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	taxRate := cfg.Checkout.Rate()

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.ClientIP(),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Checks))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	// Idempotency reads the matched route pattern, so it is attached per
	// route rather than on the subrouter.
	var idem func(http.Handler) http.Handler = passthrough
	var limit func(http.Handler) http.Handler = passthrough
	if p.Redis != nil {
		idem = middleware.Idempotency(p.Redis, logg, middleware.IdempotencyOptions{CheckoutTTL: cfg.Checkout.IdempotencyTTL})
		limit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("checkout", cfg.Checkout.RateWindow, cfg.Checkout.RateLimit),
			p.Redis,
			logg,
		)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogProducts(p.Catalog, logg))
			r.Get("/products/{productId}", controllers.CatalogProduct(p.Catalog, logg))
			r.Get("/facets", controllers.CatalogFacets(p.Catalog, logg))
		})

		r.Get("/shipping/estimate", controllers.ShippingEstimate(p.Shipping, logg))

		r.Route("/carts/{cartId}", func(r chi.Router) {
			r.Get("/", controllers.CartGet(p.Carts, taxRate, logg))
			r.Delete("/", controllers.CartClear(p.Carts, logg))
			r.Post("/items", controllers.CartAddItem(p.Carts, taxRate, logg))
			r.Put("/items/{productId}", controllers.CartSetQuantity(p.Carts, taxRate, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(p.Carts, taxRate, logg))
			r.Post("/items/{productId}/increment", controllers.CartIncrementItem(p.Carts, taxRate, logg))
		})

		r.Post("/checkout/quote", controllers.CheckoutQuote(p.Checkout, logg))
		r.With(limit, idem).Post("/checkout", controllers.CheckoutSubmit(p.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
			r.Patch("/{orderId}/status", controllers.OrderUpdateStatus(p.Orders, logg))
		})

		r.With(idem).Post("/inventory/import", controllers.InventoryImport(p.Inventory, cfg.Inventory.MaxUploadMB, logg))
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}

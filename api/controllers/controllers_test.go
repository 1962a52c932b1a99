package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/autoparts-backend/internal/catalog"
	"github.com/angelmondragon/autoparts-backend/internal/checkout"
	"github.com/angelmondragon/autoparts-backend/internal/inventory"
	"github.com/angelmondragon/autoparts-backend/internal/orders"
	"github.com/angelmondragon/autoparts-backend/internal/shipping"
	"github.com/angelmondragon/autoparts-backend/pkg/config"
	"github.com/angelmondragon/autoparts-backend/pkg/db/models"
	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/autoparts-backend/pkg/errors"
)

var iva = decimal.RequireFromString("0.19")

func withParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeData(t *testing.T, body io.Reader, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, body io.Reader) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

// health

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": ok})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "test", resp.Header().Get(envHeader))

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": down})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	body := decodeError(t, resp.Body)
	assert.Equal(t, []any{"redis"}, body.Error.Details["failed"])
}

// catalog

type stubCatalog struct {
	query   catalog.Query
	result  catalog.Result
	product *catalog.Product
	err     error
}

func (s *stubCatalog) Search(_ context.Context, q catalog.Query) (catalog.Result, error) {
	s.query = q
	return s.result, s.err
}

func (s *stubCatalog) Facets(_ context.Context, q catalog.Query) (catalog.Facets, error) {
	s.query = q
	return catalog.Facets{Total: 2}, s.err
}

func (s *stubCatalog) Get(_ context.Context, id string) (*catalog.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s not found", id)
	}
	return s.product, nil
}

func TestCatalogProductsParsesQuery(t *testing.T) {
	svc := &stubCatalog{result: catalog.Result{Total: 30, Page: 3, PageSize: 12, TotalPages: 3}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products?q=filtro&category=Filtros&tags=aire,aceite&tags=12v&sort=price_desc&page=7", nil)
	resp := httptest.NewRecorder()

	CatalogProducts(svc, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, catalog.Query{
		SearchTerm: "filtro",
		Category:   "Filtros",
		Tags:       []string{"aire", "aceite", "12v"},
		Sort:       catalog.SortPriceDesc,
		Page:       7,
	}, svc.query)

	var result catalog.Result
	decodeData(t, resp.Body, &result)
	assert.Equal(t, 3, result.Page)
}

func TestCatalogProductsDefaultsAndErrors(t *testing.T) {
	svc := &stubCatalog{}
	resp := httptest.NewRecorder()
	CatalogProducts(svc, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, catalog.SortFeatured, svc.query.Sort)
	assert.Equal(t, 1, svc.query.Page)

	resp = httptest.NewRecorder()
	CatalogProducts(svc, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products?sort=cheapest", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	CatalogProducts(svc, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products?page=abc", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCatalogProductNotFound(t *testing.T) {
	svc := &stubCatalog{product: &catalog.Product{ID: "F-100", Name: "Filtro de aire"}}

	resp := httptest.NewRecorder()
	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/F-100", nil), map[string]string{"productId": "F-100"})
	CatalogProduct(svc, nil)(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	req = withParams(httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products/X", nil), map[string]string{"productId": "X"})
	CatalogProduct(svc, nil)(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

// shipping

func TestShippingEstimate(t *testing.T) {
	est := shipping.NewEstimator(nil)

	resp := httptest.NewRecorder()
	ShippingEstimate(est, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/estimate?region=Metropolitana&subtotal=20000", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var got shipping.Estimate
	decodeData(t, resp.Body, &got)
	assert.Equal(t, int64(3990), got.Price)

	resp = httptest.NewRecorder()
	ShippingEstimate(est, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/estimate?region=Maule&subtotal=150000", nil))
	decodeData(t, resp.Body, &got)
	assert.True(t, got.Free)
	assert.Equal(t, int64(0), got.Price)

	resp = httptest.NewRecorder()
	ShippingEstimate(est, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/estimate?subtotal=1", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	ShippingEstimate(est, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/shipping/estimate?region=Maule&subtotal=-4", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

// carts

type stubCart struct {
	record    *models.CartRecord
	err       error
	lastQty   int
	lastItem  string
	cleared   bool
	removed   bool
	increment bool
}

func (s *stubCart) Get(_ context.Context, cartID uuid.UUID) (*models.CartRecord, error) {
	return s.record, s.err
}

func (s *stubCart) AddItem(_ context.Context, _ uuid.UUID, productID string, qty int) (*models.CartRecord, error) {
	s.lastItem, s.lastQty = productID, qty
	return s.record, s.err
}

func (s *stubCart) Increment(_ context.Context, _ uuid.UUID, productID string) (*models.CartRecord, error) {
	s.lastItem, s.increment = productID, true
	return s.record, s.err
}

func (s *stubCart) SetQuantity(_ context.Context, _ uuid.UUID, productID string, qty int) (*models.CartRecord, error) {
	s.lastItem, s.lastQty = productID, qty
	return s.record, s.err
}

func (s *stubCart) RemoveItem(_ context.Context, _ uuid.UUID, productID string) (*models.CartRecord, error) {
	s.lastItem, s.removed = productID, true
	return s.record, s.err
}

func (s *stubCart) Clear(context.Context, uuid.UUID) error {
	s.cleared = true
	return s.err
}

func sampleCart() *models.CartRecord {
	return &models.CartRecord{
		ID: uuid.New(),
		Items: []models.CartItem{
			{ProductID: "F-100", ProductName: "Filtro de aire", UnitPrice: 10000, Quantity: 2},
			{ProductID: "B-200", ProductName: "Batería 12V", UnitPrice: 5000, Quantity: 1},
		},
	}
}

func TestCartGetReturnsTotals(t *testing.T) {
	record := sampleCart()
	svc := &stubCart{record: record}

	req := withParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"cartId": record.ID.String()})
	resp := httptest.NewRecorder()
	CartGet(svc, iva, nil)(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var got cartResponse
	decodeData(t, resp.Body, &got)
	assert.Equal(t, record.ID, got.CartID)
	assert.Len(t, got.Lines, 2)
	assert.Equal(t, checkout.Summary{Subtotal: 25000, IVA: 4750, Total: 29750, TotalItems: 3}, got.Summary)
}

func TestCartGetRejectsBadID(t *testing.T) {
	req := withParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"cartId": "nope"})
	resp := httptest.NewRecorder()
	CartGet(&stubCart{}, iva, nil)(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCartAddItem(t *testing.T) {
	record := sampleCart()
	svc := &stubCart{record: record}

	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"F-100","quantity":2}`)), map[string]string{"cartId": record.ID.String()})
	resp := httptest.NewRecorder()
	CartAddItem(svc, iva, nil)(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "F-100", svc.lastItem)
	assert.Equal(t, 2, svc.lastQty)

	req = withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"F-100","quantity":0}`)), map[string]string{"cartId": record.ID.String()})
	resp = httptest.NewRecorder()
	CartAddItem(svc, iva, nil)(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decodeError(t, resp.Body).Error.Details, "quantity")
}

func TestCartAddItemSurfacesStockConflict(t *testing.T) {
	record := sampleCart()
	svc := &stubCart{err: pkgerrors.New(pkgerrors.CodeStateConflict, "only 1 left in stock")}

	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productId":"F-100","quantity":5}`)), map[string]string{"cartId": record.ID.String()})
	resp := httptest.NewRecorder()
	CartAddItem(svc, iva, nil)(resp, req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "only 1 left in stock", decodeError(t, resp.Body).Error.Message)
}

func TestCartItemRoutes(t *testing.T) {
	record := sampleCart()
	params := map[string]string{"cartId": record.ID.String(), "productId": "B-200"}

	svc := &stubCart{record: record}
	resp := httptest.NewRecorder()
	CartIncrementItem(svc, iva, nil)(resp, withParams(httptest.NewRequest(http.MethodPost, "/", nil), params))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, svc.increment)

	svc = &stubCart{record: record}
	resp = httptest.NewRecorder()
	CartSetQuantity(svc, iva, nil)(resp, withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"quantity":0}`)), params))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, svc.lastQty)
	assert.Equal(t, "B-200", svc.lastItem)

	resp = httptest.NewRecorder()
	CartSetQuantity(svc, iva, nil)(resp, withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`)), params))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	svc = &stubCart{record: record}
	resp = httptest.NewRecorder()
	CartRemoveItem(svc, iva, nil)(resp, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), params))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, svc.removed)

	resp = httptest.NewRecorder()
	CartClear(svc, nil)(resp, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), params))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.True(t, svc.cleared)
}

// checkout

type stubCheckout struct {
	quoteIn  checkout.QuoteInput
	submitIn checkout.SubmitInput
	result   *checkout.Result
	err      error
}

func (s *stubCheckout) Quote(_ context.Context, in checkout.QuoteInput) (*checkout.Quote, error) {
	s.quoteIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.Quote{CartID: in.CartID}, nil
}

func (s *stubCheckout) Submit(_ context.Context, in checkout.SubmitInput) (*checkout.Result, error) {
	s.submitIn = in
	return s.result, s.err
}

func TestCheckoutQuote(t *testing.T) {
	svc := &stubCheckout{}
	cartID := uuid.New()
	body := `{"cartId":"` + cartID.String() + `","address":{"region":"Valparaíso","comuna":"Viña del Mar"}}`

	resp := httptest.NewRecorder()
	CheckoutQuote(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, cartID, svc.quoteIn.CartID)
	require.NotNil(t, svc.quoteIn.Address)
	assert.Equal(t, "Viña del Mar", svc.quoteIn.Address.Comuna)
}

func TestCheckoutSubmitStatusReflectsWhereOrderWasSaved(t *testing.T) {
	cartID := uuid.New()
	body := `{"cartId":"` + cartID.String() + `","address":{"destinatario":"Ana","direccion":"Av. Siempre Viva 742","region":"Metropolitana","comuna":"Ñuñoa"},"paymentMethod":"transferencia","customerEmail":"ana@example.cl"}`

	tests := []struct {
		name   string
		result *checkout.Result
		status int
	}{
		{"remote", &checkout.Result{OrderID: uuid.New(), Saved: checkout.SavedRemote, Status: enums.OrderStatusReceived}, http.StatusCreated},
		{"local", &checkout.Result{OrderID: uuid.New(), Saved: checkout.SavedLocal, Status: enums.OrderStatusPendingSync, Message: checkout.SavedLocalMessage}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCheckout{result: tt.result}
			resp := httptest.NewRecorder()
			CheckoutSubmit(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)))

			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, "transferencia", svc.submitIn.PaymentMethod)
			assert.Equal(t, "Ñuñoa", svc.submitIn.Address.Comuna)
			var got checkout.Result
			decodeData(t, resp.Body, &got)
			assert.Equal(t, tt.result.Saved, got.Saved)
		})
	}
}

func TestCheckoutSubmitValidation(t *testing.T) {
	svc := &stubCheckout{}
	resp := httptest.NewRecorder()
	CheckoutSubmit(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"cartId":"`+uuid.NewString()+`","customerEmail":"not-an-email"}`)))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	details := decodeError(t, resp.Body).Error.Details
	assert.Contains(t, details, "paymentMethod")
	assert.Contains(t, details, "customerEmail")
}

func TestCheckoutSubmitDependencyFailure(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeDependency, "orders service rejected the order")}
	body := `{"cartId":"` + uuid.NewString() + `","address":{"region":"Maule"},"paymentMethod":"transferencia"}`
	resp := httptest.NewRecorder()
	CheckoutSubmit(svc, nil)(resp, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body)))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "30", resp.Header().Get("Retry-After"))
}

// orders

type stubOrders struct {
	listIn orders.ListInput
	status string
	order  *orders.OrderDTO
	err    error
}

func (s *stubOrders) Get(_ context.Context, id uuid.UUID) (*orders.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrders) List(_ context.Context, in orders.ListInput) (*orders.OrderList, error) {
	s.listIn = in
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, s.err
}

func (s *stubOrders) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*orders.OrderDTO, error) {
	s.status = status
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func TestOrdersListPassesFilters(t *testing.T) {
	svc := &stubOrders{}
	resp := httptest.NewRecorder()
	OrdersList(svc, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=10&status=pending_sync&source=local&cursor=abc", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 10, svc.listIn.Pagination.Limit)
	assert.Equal(t, "abc", svc.listIn.Pagination.Cursor)
	assert.Equal(t, "pending_sync", svc.listIn.Status)
	assert.Equal(t, "local", svc.listIn.Source)

	resp = httptest.NewRecorder()
	OrdersList(svc, nil)(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOrderDetailAndStatus(t *testing.T) {
	id := uuid.New()
	svc := &stubOrders{order: &orders.OrderDTO{ID: id, Status: "shipped"}}
	params := map[string]string{"orderId": id.String()}

	resp := httptest.NewRecorder()
	OrderDetail(svc, nil)(resp, withParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	OrderUpdateStatus(svc, nil)(resp, withParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"shipped"}`)), params))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "shipped", svc.status)

	svc.err = pkgerrors.New(pkgerrors.CodeStateConflict, "order is already delivered")
	resp = httptest.NewRecorder()
	OrderUpdateStatus(svc, nil)(resp, withParams(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"cancelled"}`)), params))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

// inventory

type stubImporter struct {
	body   string
	opts   inventory.Options
	report *inventory.Report
	err    error
}

func (s *stubImporter) Import(_ context.Context, r io.Reader, opts inventory.Options) (*inventory.Report, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.body, s.opts = string(raw), opts
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		s.report.DryRun = opts.DryRun
	}
	return s.report, nil
}

const csvBody = "id,nombre,descripcion,precio,stock,imagen\nF-100,Filtro,,5990,12,https://img.example/f.png\n"

func TestInventoryImportRawCSV(t *testing.T) {
	importer := &stubImporter{report: &inventory.Report{Rows: 1, Created: 1, ProductIDs: []string{"F-100"}}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	resp := httptest.NewRecorder()

	InventoryImport(importer, 1, nil)(resp, req)

	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, csvBody, importer.body)
	assert.False(t, importer.opts.DryRun)
}

func TestInventoryImportMultipartDryRun(t *testing.T) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "productos.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	importer := &stubImporter{report: &inventory.Report{Rows: 1, Updated: 1}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import?dry_run=true", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp := httptest.NewRecorder()

	InventoryImport(importer, 1, nil)(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, csvBody, importer.body)
	assert.True(t, importer.opts.DryRun)
}

func TestInventoryImportRejections(t *testing.T) {
	rejected := pkgerrors.Wrap(pkgerrors.CodeValidation, errors.New("line 3: stock must be 0 or more"), "import file rejected").
		WithDetails(map[string]any{"errors": []inventory.RowError{{Line: 3, Column: "stock", Reason: "must be 0 or more, got -1"}}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	resp := httptest.NewRecorder()
	InventoryImport(&stubImporter{err: rejected}, 1, nil)(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "must be 0 or more")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	InventoryImport(&stubImporter{}, 1, nil)(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	big := strings.Repeat("x", (1<<20)+10)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/inventory/import", strings.NewReader(big))
	req.Header.Set("Content-Type", "text/csv")
	resp = httptest.NewRecorder()
	InventoryImport(&stubImporter{}, 1, nil)(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "upload too large")
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"paperbloom/internal/domain"
	"paperbloom/internal/repository"
	"paperbloom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Mock repository for testing
type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, exists := m.products[product.ID]; !exists {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, exists := m.products[id]; !exists {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	products := make([]*domain.Product, 0, len(m.products))
	for _, product := range m.products {
		products = append(products, product)
	}
	return products, nil
}

func (m *mockProductRepository) Reserve(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	product, exists := m.products[id]
	if !exists {
		return false, repository.ErrProductNotFound
	}
	if product.Stock < quantity {
		return false, nil
	}
	product.Stock -= quantity
	return true, nil
}

func (m *mockProductRepository) Release(ctx context.Context, id uuid.UUID, quantity int) error {
	product, exists := m.products[id]
	if !exists {
		return repository.ErrProductNotFound
	}
	product.Stock += quantity
	return nil
}

func (m *mockProductRepository) StockByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	levels := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		if product, exists := m.products[id]; exists {
			levels[id] = product.Stock
		}
	}
	return levels, nil
}

func passthrough(next http.Handler) http.Handler { return next }

func setupRouter(repo *mockProductRepository) http.Handler {
	productService := service.NewProductService(repo)
	logger := zap.NewNop()
	handler := NewProductHandler(productService, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r, passthrough, passthrough)
	return r
}

func seedBook(repo *mockProductRepository, stock int) *domain.Product {
	product := &domain.Product{
		ID:       uuid.New(),
		Name:     "The Left Hand of Darkness",
		Category: domain.CategoryBook,
		Price:    11.5,
		Stock:    stock,
		Book: &domain.BookDetails{
			Author:   "Ursula K. Le Guin",
			Genre:    "fiction",
			Language: "English",
		},
	}
	repo.products[product.ID] = product
	return product
}

func postJSON(router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReserve_Grants(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 5)

	w := postJSON(router, "/api/products/"+product.ID.String()+"/reserve", ReserveRequest{Quantity: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ReserveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected reservation to be granted: %+v", resp)
	}
	if repo.products[product.ID].Stock != 3 {
		t.Errorf("expected stock 3, got %d", repo.products[product.ID].Stock)
	}
}

func TestReserve_InsufficientStockIsARefusalNotAnError(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 1)

	w := postJSON(router, "/api/products/"+product.ID.String()+"/reserve", ReserveRequest{Quantity: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("refusals travel as 200 payloads, got %d: %s", w.Code, w.Body.String())
	}

	var resp ReserveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if resp.Success {
		t.Error("expected reservation to be refused")
	}
	if resp.Message != "Not enough stock available!" {
		t.Errorf("unexpected refusal message %q", resp.Message)
	}
	if repo.products[product.ID].Stock != 1 {
		t.Errorf("refused reservation must not change stock, got %d", repo.products[product.ID].Stock)
	}
}

func TestReserve_UnknownProductIs404(t *testing.T) {
	router := setupRouter(newMockProductRepository())

	w := postJSON(router, "/api/products/"+uuid.NewString()+"/reserve", ReserveRequest{Quantity: 1})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestReserve_InvalidQuantityIs400(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 5)

	w := postJSON(router, "/api/products/"+product.ID.String()+"/reserve", map[string]int{"quantity": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRelease_ReturnsUnits(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 3)

	w := postJSON(router, "/api/products/"+product.ID.String()+"/release", ReserveRequest{Quantity: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.products[product.ID].Stock != 5 {
		t.Errorf("expected stock 5 after release, got %d", repo.products[product.ID].Stock)
	}
}

func TestStockSync_ReportsKnownProductsOnly(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 4)
	unknown := uuid.New()

	w := postJSON(router, "/api/products/stock-sync", StockSyncRequest{
		ProductIDs: []string{product.ID.String(), unknown.String()},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp StockSyncResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(resp.Products) != 1 {
		t.Fatalf("expected one entry, got %d", len(resp.Products))
	}
	if resp.Products[0].ID != product.ID.String() || resp.Products[0].Stock != 4 {
		t.Errorf("unexpected entry: %+v", resp.Products[0])
	}
}

func TestStockSync_DeduplicatesRequestedIDs(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 4)

	w := postJSON(router, "/api/products/stock-sync", StockSyncRequest{
		ProductIDs: []string{product.ID.String(), product.ID.String(), product.ID.String()},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp StockSyncResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(resp.Products) != 1 {
		t.Fatalf("duplicate ids must collapse to one entry, got %d", len(resp.Products))
	}
	if resp.Products[0].ID != product.ID.String() || resp.Products[0].Stock != 4 {
		t.Errorf("unexpected entry: %+v", resp.Products[0])
	}
}

func TestStockSync_EmptyListIs400(t *testing.T) {
	router := setupRouter(newMockProductRepository())

	w := postJSON(router, "/api/products/stock-sync", StockSyncRequest{ProductIDs: []string{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestList_ReturnsRawRecords(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 4)

	req := httptest.NewRequest(http.MethodGet, "/api/products/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var records []domain.RawProduct
	if err := json.NewDecoder(w.Body).Decode(&records); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].ID != product.ID.String() || records[0].Category != "book" {
		t.Errorf("unexpected record: %+v", records[0])
	}

	var details map[string]any
	if err := json.Unmarshal(records[0].Details, &details); err != nil {
		t.Fatalf("could not decode details payload: %v", err)
	}
	if details["author"] != "Ursula K. Le Guin" {
		t.Errorf("details payload lost the author: %v", details)
	}
}

func TestCreate_StoresValidatedProduct(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)

	details, _ := json.Marshal(map[string]string{"color": "red", "season": "summer"})
	w := postJSON(router, "/api/products/", ProductRequest{
		Name:     "Rose Dozen",
		Category: "flower",
		Price:    24,
		Stock:    10,
		Details:  details,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(repo.products) != 1 {
		t.Fatalf("expected one stored product, got %d", len(repo.products))
	}
}

func TestCreate_DetailsMismatchIs400(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)

	// Book payload under a flower tag must be rejected by the conversion.
	details, _ := json.Marshal(map[string]string{"author": "Nobody"})
	w := postJSON(router, "/api/products/", ProductRequest{
		Name:     "Mislabeled",
		Category: "flower",
		Price:    5,
		Stock:    1,
		Details:  details,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if len(repo.products) != 0 {
		t.Errorf("rejected product must not be stored")
	}
}

func TestDelete_RemovesProduct(t *testing.T) {
	repo := newMockProductRepository()
	router := setupRouter(repo)
	product := seedBook(repo, 4)

	req := httptest.NewRequest(http.MethodDelete, "/api/products/"+product.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if len(repo.products) != 0 {
		t.Error("product was not removed")
	}
}

// Feature: storefront-core, Property: reservation endpoint never oversells
// Validates: whatever sequence of reserve calls arrives, granted quantities
// never exceed the seeded stock and refusals leave stock untouched.
func TestProperty_ReserveEndpointNeverOversells(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("sum of granted reservations never exceeds initial stock", prop.ForAll(
		func(initialStock int, quantities []int) bool {
			repo := newMockProductRepository()
			router := setupRouter(repo)
			product := seedBook(repo, initialStock)

			granted := 0
			for _, quantity := range quantities {
				w := postJSON(router,
					fmt.Sprintf("/api/products/%s/reserve", product.ID),
					ReserveRequest{Quantity: quantity},
				)
				if w.Code != http.StatusOK {
					t.Logf("FAIL: unexpected status %d for quantity %d", w.Code, quantity)
					return false
				}

				var resp ReserveResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Logf("FAIL: could not decode response: %v", err)
					return false
				}
				if resp.Success {
					granted += quantity
				}
			}

			if granted > initialStock {
				t.Logf("FAIL: granted %d from initial stock %d", granted, initialStock)
				return false
			}
			if repo.products[product.ID].Stock != initialStock-granted {
				t.Logf("FAIL: stock %d, expected %d", repo.products[product.ID].Stock, initialStock-granted)
				return false
			}
			return true
		},
		gen.IntRange(0, 30),
		gen.SliceOf(gen.IntRange(1, 10)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

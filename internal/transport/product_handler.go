package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"paperbloom/internal/domain"
	"paperbloom/internal/middleware"
	"paperbloom/internal/repository"
	"paperbloom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductRequest represents the admin create/update payload
type ProductRequest struct {
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category" validate:"required,oneof=book stationery stationary flower"`
	Price    float64         `json:"price" validate:"gte=0"`
	Stock    int             `json:"stock" validate:"gte=0"`
	Discount float64         `json:"discount" validate:"gte=0,lte=100"`
	ImageURL string          `json:"image_url"`
	Details  json.RawMessage `json:"details" validate:"required"`
}

// ReserveRequest represents a reservation or release payload
type ReserveRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// ReserveResponse is the reservation outcome on the wire
type ReserveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StockSyncRequest asks for authoritative stock on a set of products
type StockSyncRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,uuid"`
}

// StockSyncResponse carries current stock per requested product
type StockSyncResponse struct {
	Products []StockEntry `json:"products"`
}

// StockEntry is one product's stock level
type StockEntry struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

// ProductHandler handles HTTP requests for catalog and inventory operations
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		// Public routes
		r.Get("/", h.List)
		r.Post("/stock-sync", h.StockSync)
		r.Post("/{id}/reserve", h.Reserve)
		r.Post("/{id}/release", h.Release)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns the full catalog as raw records
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	records := make([]domain.RawProduct, 0, len(products))
	for _, product := range products {
		record, recErr := product.Record()
		if recErr != nil {
			h.logger.Warn("Skipping product with unencodable details",
				zap.String("product_id", product.ID.String()),
				zap.Error(recErr),
			)
			continue
		}
		records = append(records, record)
	}

	middleware.RespondWithJSON(w, http.StatusOK, records)
}

// Reserve places a stock hold for a cart
func (h *ProductHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req ReserveRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.respondBadRequest(w, err)
		return
	}

	err := h.productService.Reserve(r.Context(), id, req.Quantity)
	switch {
	case err == nil:
		middleware.RespondWithJSON(w, http.StatusOK, ReserveResponse{Success: true})
	case errors.Is(err, service.ErrInsufficientStock):
		middleware.RespondWithJSON(w, http.StatusOK, ReserveResponse{
			Success: false,
			Message: "Not enough stock available!",
		})
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Reservation failed",
			zap.String("product_id", id.String()),
			zap.Int("quantity", req.Quantity),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to reserve stock")
	}
}

// Release returns held units to stock
func (h *ProductHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req ReserveRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.respondBadRequest(w, err)
		return
	}

	err := h.productService.Release(r.Context(), id, req.Quantity)
	switch {
	case err == nil:
		middleware.RespondWithJSON(w, http.StatusOK, ReserveResponse{Success: true})
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Release failed",
			zap.String("product_id", id.String()),
			zap.Int("quantity", req.Quantity),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to release stock")
	}
}

// StockSync returns authoritative stock for the requested products
func (h *ProductHandler) StockSync(w http.ResponseWriter, r *http.Request) {
	var req StockSyncRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.respondBadRequest(w, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.ProductIDs))
	seen := make(map[uuid.UUID]struct{}, len(req.ProductIDs))
	for _, rawID := range req.ProductIDs {
		id, err := uuid.Parse(rawID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id: "+rawID)
			return
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	levels, err := h.productService.StockLevels(r.Context(), ids)
	if err != nil {
		h.logger.Error("Stock sync failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to fetch stock levels")
		return
	}

	entries := make([]StockEntry, 0, len(levels))
	for _, id := range ids {
		if stock, known := levels[id]; known {
			entries = append(entries, StockEntry{ID: id.String(), Stock: stock})
		}
	}

	middleware.RespondWithJSON(w, http.StatusOK, StockSyncResponse{Products: entries})
}

// Create adds a product to the catalog
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.respondBadRequest(w, err)
		return
	}

	product, err := h.productService.Create(r.Context(), req.record())
	if err != nil {
		if errors.Is(err, service.ErrInvalidProduct) {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	record, err := product.Record()
	if err != nil {
		h.logger.Error("Failed to encode created product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to encode product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("category", string(product.Category)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, record)
}

// Update replaces a product's fields
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.respondBadRequest(w, err)
		return
	}

	product, err := h.productService.Update(r.Context(), id, req.record())
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	case errors.Is(err, service.ErrInvalidProduct):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.logger.Error("Failed to update product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	record, err := product.Record()
	if err != nil {
		h.logger.Error("Failed to encode updated product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to encode product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, record)
}

// Delete removes a product from the catalog
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to delete product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductHandler) respondBadRequest(w http.ResponseWriter, err error) {
	h.logger.Debug("Request validation failed", zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

func (r ProductRequest) record() domain.RawProduct {
	return domain.RawProduct{
		Name:     r.Name,
		Category: r.Category,
		Price:    r.Price,
		Stock:    r.Stock,
		Discount: r.Discount,
		ImageURL: r.ImageURL,
		Details:  r.Details,
	}
}

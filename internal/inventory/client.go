package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"paperbloom/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is the inventory collaborator the cart depends on. Reserve must
// fail closed: any ambiguous or failed exchange reports no reservation.
// Implementations never panic or surface transport errors from Reserve and
// Release; those degrade to a negative result.
type Client interface {
	// Reserve places a hold on quantity units and reports whether the hold
	// was granted, with a human-readable message on refusal.
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) (bool, string)

	// Release returns quantity held units to the available pool.
	Release(ctx context.Context, productID uuid.UUID, quantity int) bool

	// StockLevels fetches authoritative stock for the given products.
	StockLevels(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type reserveRequest struct {
	Quantity int `json:"quantity"`
}

type reserveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type stockSyncRequest struct {
	ProductIDs []string `json:"product_ids"`
}

type stockSyncResponse struct {
	Products []stockLevel `json:"products"`
}

type stockLevel struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

// HTTPClient talks to the storefront inventory API. It also satisfies
// catalog.Fetcher via FetchProducts.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a client for the inventory API at baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// FetchProducts retrieves the full raw catalog.
func (c *HTTPClient) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/products", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog request returned status %d", resp.StatusCode)
	}

	var raws []domain.RawProduct
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return raws, nil
}

// Reserve asks the inventory API to hold quantity units. Transport errors,
// unexpected statuses and undecodable bodies all report a failed
// reservation.
func (c *HTTPClient) Reserve(ctx context.Context, productID uuid.UUID, quantity int) (bool, string) {
	url := fmt.Sprintf("%s/api/products/%s/reserve", c.baseURL, productID)
	result, err := c.postReservation(ctx, url, quantity)
	if err != nil {
		c.logger.Error("Reservation call failed",
			zap.String("product_id", productID.String()),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return false, "Could not reserve stock, please try again."
	}
	return result.Success, result.Message
}

// Release returns quantity units to the pool. Failures are logged only; the
// caller applies its local state change regardless.
func (c *HTTPClient) Release(ctx context.Context, productID uuid.UUID, quantity int) bool {
	url := fmt.Sprintf("%s/api/products/%s/release", c.baseURL, productID)
	result, err := c.postReservation(ctx, url, quantity)
	if err != nil {
		c.logger.Error("Release call failed",
			zap.String("product_id", productID.String()),
			zap.Int("quantity", quantity),
			zap.Error(err),
		)
		return false
	}
	return result.Success
}

// StockLevels bulk-fetches authoritative stock for the given product ids.
func (c *HTTPClient) StockLevels(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = id.String()
	}

	body, err := json.Marshal(stockSyncRequest{ProductIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stock-sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/products/stock-sync", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stock-sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stock-sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stock-sync returned status %d", resp.StatusCode)
	}

	var decoded stockSyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode stock-sync response: %w", err)
	}

	levels := make(map[uuid.UUID]int, len(decoded.Products))
	for _, level := range decoded.Products {
		id, parseErr := uuid.Parse(level.ID)
		if parseErr != nil {
			c.logger.Warn("Skipping unparseable id in stock-sync response",
				zap.String("id", level.ID),
			)
			continue
		}
		levels[id] = level.Stock
	}
	return levels, nil
}

func (c *HTTPClient) postReservation(ctx context.Context, url string, quantity int) (reserveResponse, error) {
	body, err := json.Marshal(reserveRequest{Quantity: quantity})
	if err != nil {
		return reserveResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return reserveResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return reserveResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded reserveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return reserveResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	// A refusal arrives as success:false with 200; anything else non-OK is
	// a transport-level failure.
	if resp.StatusCode != http.StatusOK && decoded.Message == "" {
		return reserveResponse{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return decoded, nil
}

package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReserve_GrantedAndRefused(t *testing.T) {
	productID := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/products/"+productID.String()+"/reserve", r.URL.Path)

		var req struct {
			Quantity int `json:"quantity"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Quantity > 3 {
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "Not enough stock available!",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	ctx := context.Background()

	granted, _ := client.Reserve(ctx, productID, 2)
	assert.True(t, granted)

	granted, message := client.Reserve(ctx, productID, 5)
	assert.False(t, granted)
	assert.Equal(t, "Not enough stock available!", message)
}

func TestReserve_TransportFailureFailsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close() // connection refused from here on

	client := NewHTTPClient(server.URL, zap.NewNop())

	granted, message := client.Reserve(context.Background(), uuid.New(), 1)
	assert.False(t, granted)
	assert.NotEmpty(t, message)
}

func TestRelease_ReportsOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	assert.True(t, client.Release(context.Background(), uuid.New(), 2))

	server.Close()
	assert.False(t, client.Release(context.Background(), uuid.New(), 2))
}

func TestStockLevels_ParsesKnownIDs(t *testing.T) {
	known := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/stock-sync", r.URL.Path)

		var req struct {
			ProductIDs []string `json:"product_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{known.String()}, req.ProductIDs)

		json.NewEncoder(w).Encode(map[string]any{
			"products": []map[string]any{
				{"id": known.String(), "stock": 7},
				{"id": "not-a-uuid", "stock": 3},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())

	levels, err := client.StockLevels(context.Background(), []uuid.UUID{known})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{known: 7}, levels)
}

func TestStockLevels_NonOKStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())

	_, err := client.StockLevels(context.Background(), []uuid.UUID{uuid.New()})
	assert.Error(t, err)
}

func TestFetchProducts_DecodesRawCatalog(t *testing.T) {
	id := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":       id.String(),
				"name":     "Daffodil Bunch",
				"category": "flower",
				"price":    6.5,
				"stock":    12,
				"details":  map[string]any{"color": "yellow", "season": "spring"},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())

	raws, err := client.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, id.String(), raws[0].ID)
	assert.Equal(t, "flower", raws[0].Category)
	assert.Equal(t, 12, raws[0].Stock)
}

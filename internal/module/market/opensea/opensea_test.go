package opensea_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unqnft/marketplace-proxy/internal/module/market/opensea"
	"github.com/unqnft/marketplace-proxy/utils/config"
)

func setupOpenSea(baseURL string) opensea.Client {
	cfg := config.OpenSea{BaseURL: baseURL, APIKey: "test-key"}
	return opensea.NewClient(cfg, zerolog.New(nil))
}

func TestGetAssets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "punks", r.URL.Query().Get("search"))
		assert.Equal(t, "20", r.URL.Query().Get("offset"))
		w.Write([]byte(`{"assets":[{"id":1,"token_id":"42","name":"Punk 42","asset_contract":{"address":"0xabc"}}]}`))
	}))
	defer server.Close()

	assets, err := setupOpenSea(server.URL).GetAssets(context.Background(), "punks", 2)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "42", assets[0].TokenID)
	assert.Equal(t, "0xabc", assets[0].AssetContract.Address)
}

func TestGetOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("asset_contract_address"))
		assert.Equal(t, "42", r.URL.Query().Get("token_id"))
		assert.Equal(t, "1", r.URL.Query().Get("side"))
		w.Write([]byte(`{"orders":[{"order_hash":"0xfeed","side":1,"current_price":"1000000000000000000"}],"count":1}`))
	}))
	defer server.Close()

	orders, err := setupOpenSea(server.URL).GetOrders(context.Background(), "0xabc", "42", opensea.SideSell)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "0xfeed", orders[0].OrderHash)
}

func TestFulfillOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/fulfill", r.URL.Path)

		var req opensea.FulfillRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0xfeed", req.OrderHash)
		assert.Equal(t, "0xbuyer", req.AccountAddress)

		w.Write([]byte(`{"transaction_hash":"0xdead","status":"submitted"}`))
	}))
	defer server.Close()

	result, err := setupOpenSea(server.URL).FulfillOrder(context.Background(), opensea.FulfillRequest{
		OrderHash:      "0xfeed",
		AccountAddress: "0xbuyer",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xdead", result.TransactionHash)
}

func TestFulfillOrderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := setupOpenSea(server.URL).FulfillOrder(context.Background(), opensea.FulfillRequest{OrderHash: "0xfeed"})
	assert.Error(t, err)
}

func TestGetCollections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"collections":[{"slug":"cool-cats","name":"Cool Cats"}]}`))
	}))
	defer server.Close()

	collections, err := setupOpenSea(server.URL).GetCollections(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "cool-cats", collections[0].Slug)
}

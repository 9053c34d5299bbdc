package opensea

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/unqnft/marketplace-proxy/internal/module/shared"
	"github.com/unqnft/marketplace-proxy/utils/config"
)

// Order sides as the exchange reports them.
const (
	SideBuy  = 0
	SideSell = 1
)

const pageLimit = 20

type Client interface {
	GetAssets(ctx context.Context, query string, page int) ([]Asset, error)
	GetCollections(ctx context.Context, query string, page int) ([]Collection, error)
	GetOrders(ctx context.Context, assetContract, tokenID string, side int) ([]Order, error)
	FulfillOrder(ctx context.Context, req FulfillRequest) (*FulfillResult, error)
}

type client struct {
	baseURL string
	apiKey  string
	http    shared.HTTPClient
	logger  zerolog.Logger
}

func NewClient(cfg config.OpenSea, logger zerolog.Logger) Client {
	return &client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With().Str("component", "opensea").Logger(),
	}
}

// NewClientWithHTTP lets tests swap the transport.
func NewClientWithHTTP(cfg config.OpenSea, httpClient shared.HTTPClient, logger zerolog.Logger) Client {
	return &client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
	}
}

func (c *client) headers() map[string]string {
	headers := map[string]string{"Accept": "application/json"}
	if c.apiKey != "" {
		headers["X-API-KEY"] = c.apiKey
	}
	return headers
}

func (c *client) GetAssets(ctx context.Context, query string, page int) ([]Asset, error) {
	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("offset", strconv.Itoa((page-1)*pageLimit))

	body, _, err := shared.DoRequest(c.http, c.baseURL+"/assets?"+params.Encode(), c.headers(), 15)
	if err != nil {
		return nil, err
	}

	var response assetsResponse
	if err := shared.ParseJSONResponse(body, &response); err != nil {
		return nil, err
	}

	return response.Assets, nil
}

func (c *client) GetCollections(ctx context.Context, query string, page int) ([]Collection, error) {
	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	params.Set("limit", strconv.Itoa(pageLimit))
	params.Set("offset", strconv.Itoa((page-1)*pageLimit))

	body, _, err := shared.DoRequest(c.http, c.baseURL+"/collections?"+params.Encode(), c.headers(), 15)
	if err != nil {
		return nil, err
	}

	var response collectionsResponse
	if err := shared.ParseJSONResponse(body, &response); err != nil {
		return nil, err
	}

	return response.Collections, nil
}

func (c *client) GetOrders(ctx context.Context, assetContract, tokenID string, side int) ([]Order, error) {
	params := url.Values{}
	params.Set("asset_contract_address", assetContract)
	params.Set("token_id", tokenID)
	params.Set("side", strconv.Itoa(side))

	body, _, err := shared.DoRequest(c.http, c.baseURL+"/orders?"+params.Encode(), c.headers(), 15)
	if err != nil {
		return nil, err
	}

	var response ordersResponse
	if err := shared.ParseJSONResponse(body, &response); err != nil {
		return nil, err
	}

	return response.Orders, nil
}

func (c *client) FulfillOrder(ctx context.Context, fulfillReq FulfillRequest) (*FulfillResult, error) {
	payload, err := json.Marshal(fulfillReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders/fulfill", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers() {
		req.Header.Set(key, value)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute fulfill request: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", res.StatusCode).Str("order", fulfillReq.OrderHash).Msg("order fulfillment rejected")
		return nil, fmt.Errorf("failed to fulfill order, status code: %d", res.StatusCode)
	}

	var result FulfillResult
	if err := shared.ParseJSONResponse(body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

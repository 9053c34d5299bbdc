package controller

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/unqnft/marketplace-proxy/internal/database/schema"
	"github.com/unqnft/marketplace-proxy/internal/module/market/repository"
	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
)

type marketController struct {
	aggregatorService service.AggregatorService
	tradeRepo         repository.TradeRepository
	requestLogRepo    repository.RequestLogRepository
	logger            zerolog.Logger
}

type MarketController interface {
	GetAssets(ctx *fasthttp.RequestCtx)
	GetOffers(ctx *fasthttp.RequestCtx)
	GetHolds(ctx *fasthttp.RequestCtx)
	GetTrades(ctx *fasthttp.RequestCtx)
	GetTradeArchive(ctx *fasthttp.RequestCtx)
	GetPresetCollections(ctx *fasthttp.RequestCtx)
	Mint(ctx *fasthttp.RequestCtx)
	GetOrder(ctx *fasthttp.RequestCtx)
	FulfillOrder(ctx *fasthttp.RequestCtx)
	CheckHealthz(ctx *fasthttp.RequestCtx)
}

func NewMarketController(aggregatorService service.AggregatorService, tradeRepo repository.TradeRepository, requestLogRepo repository.RequestLogRepository, logger zerolog.Logger) MarketController {
	return &marketController{
		aggregatorService: aggregatorService,
		tradeRepo:         tradeRepo,
		requestLogRepo:    requestLogRepo,
		logger:            logger,
	}
}

func (_i *marketController) respond(ctx *fasthttp.RequestCtx, code int, data interface{}, message string) {
	response := map[string]interface{}{
		"code":    code,
		"data":    data,
		"message": message,
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		ctx.Error("failed to serialize response ", fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetBody(responseBody)
	ctx.Response.SetStatusCode(fasthttp.StatusOK)
}

func (_i *marketController) logRequest(ctx *fasthttp.RequestCtx, endpoint string, startTime time.Time) {
	log := schema.RequestLog{
		IPAddress:     ctx.RemoteIP().String(),
		Endpoint:      endpoint,
		RequestParams: string(ctx.URI().QueryString()),
		ExecutionTime: time.Since(startTime).Milliseconds(),
	}
	_i.requestLogRepo.InsertLog(context.Background(), log)
}

func queryInt(ctx *fasthttp.RequestCtx, key string, fallback int) int {
	raw := string(ctx.QueryArgs().Peek(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func queryStrings(ctx *fasthttp.RequestCtx, key string) []string {
	var values []string
	for _, raw := range ctx.QueryArgs().PeekMulti(key) {
		if len(raw) > 0 {
			values = append(values, string(raw))
		}
	}
	return values
}

func (_i *marketController) GetAssets(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/assets", startTime)

	query := string(ctx.QueryArgs().Peek("query"))
	page := queryInt(ctx, "page", 1)

	assets := _i.aggregatorService.GetAssets(context.Background(), query, page)
	if assets == nil {
		_i.respond(ctx, 500, nil, "failed to retrieve assets, try again")
		return
	}

	_i.respond(ctx, 0, assets, "Request successful")
}

func (_i *marketController) GetOffers(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/offers", startTime)

	filters := service.OfferFilters{
		CollectionIDs: queryStrings(ctx, "collectionId"),
		TraitsCount:   queryStrings(ctx, "traitsCount"),
	}
	searchText := string(ctx.QueryArgs().Peek("searchText"))
	if searchText != "" {
		filters.Extra = map[string]string{"searchText": searchText}
	}

	offers, err := _i.aggregatorService.GetOffers(
		context.Background(),
		queryInt(ctx, "page", 1),
		queryInt(ctx, "pageSize", 20),
		filters,
	)
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to retrieve offers")
		return
	}

	_i.respond(ctx, 0, offers, "Request successful")
}

func (_i *marketController) GetHolds(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/holds", startTime)

	account, _ := ctx.UserValue("account").(string)
	if account == "" {
		_i.respond(ctx, 400, nil, "account is required")
		return
	}

	holds, err := _i.aggregatorService.GetHoldByMe(
		context.Background(),
		account,
		queryInt(ctx, "page", 1),
		queryInt(ctx, "pageSize", 20),
		queryStrings(ctx, "collectionId"),
	)
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to retrieve holds")
		return
	}

	_i.respond(ctx, 0, holds, "Request successful")
}

func (_i *marketController) GetTrades(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/trades", startTime)

	account, _ := ctx.UserValue("account").(string)

	trades, err := _i.aggregatorService.GetTrades(context.Background(), service.TradeParams{
		Account:       account,
		CollectionIDs: queryStrings(ctx, "collectionId"),
		Page:          queryInt(ctx, "page", 1),
		PageSize:      queryInt(ctx, "pageSize", 20),
	})
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to retrieve trades")
		return
	}

	_i.respond(ctx, 0, trades, "Request successful")
}

// GetTradeArchive serves the locally persisted trade history, unlike
// GetTrades which proxies the live feed.
func (_i *marketController) GetTradeArchive(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/trades/archive", startTime)

	page := queryInt(ctx, "page", 1)
	pageSize := queryInt(ctx, "pageSize", 20)

	trades, total, err := _i.tradeRepo.ListTrades(
		context.Background(),
		string(ctx.QueryArgs().Peek("account")),
		queryStrings(ctx, "collectionId"),
		page,
		pageSize,
	)
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to retrieve archived trades")
		return
	}

	_i.respond(ctx, 0, map[string]interface{}{
		"items":      trades,
		"itemsCount": total,
		"page":       page,
		"pageSize":   pageSize,
	}, "Request successful")
}

func (_i *marketController) GetPresetCollections(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/collections/presets", startTime)

	collections, err := _i.aggregatorService.PresetCollections(context.Background())
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to retrieve preset collections")
		return
	}

	_i.respond(ctx, 0, collections, "Request successful")
}

type mintRequestBody struct {
	Contract  string `json:"contract"`
	TokenID   string `json:"tokenId"`
	Recipient string `json:"recipient"`
}

func (_i *marketController) Mint(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/mint", startTime)

	var body mintRequestBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		_i.respond(ctx, 400, nil, "invalid request body")
		return
	}
	if body.Contract == "" || body.TokenID == "" || body.Recipient == "" {
		_i.respond(ctx, 400, nil, "contract, tokenId and recipient are required")
		return
	}

	request, err := _i.aggregatorService.MintOnUniq(context.Background(), body.Contract, body.TokenID, body.Recipient)
	if err != nil {
		_i.logger.Error().Err(err).Msg("mint request failed")
		_i.respond(ctx, 500, nil, err.Error())
		return
	}

	_i.respond(ctx, 0, request, "Mint request accepted")
}

func (_i *marketController) GetOrder(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/orders", startTime)

	contract := string(ctx.QueryArgs().Peek("contract"))
	tokenID := string(ctx.QueryArgs().Peek("tokenId"))
	if contract == "" || tokenID == "" {
		_i.respond(ctx, 400, nil, "contract and tokenId are required")
		return
	}

	order, err := _i.aggregatorService.GetOrder(context.Background(), contract, tokenID)
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to retrieve order")
		return
	}
	if order == nil {
		_i.respond(ctx, 404, nil, "no open order for this token")
		return
	}

	_i.respond(ctx, 0, order, "Request successful")
}

type fulfillRequestBody struct {
	OrderHash string `json:"orderHash"`
	Account   string `json:"account"`
	Recipient string `json:"recipient"`
	Referrer  string `json:"referrer"`
}

func (_i *marketController) FulfillOrder(ctx *fasthttp.RequestCtx) {
	startTime := time.Now()
	defer _i.logRequest(ctx, "/orders/fulfill", startTime)

	var body fulfillRequestBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		_i.respond(ctx, 400, nil, "invalid request body")
		return
	}
	if body.OrderHash == "" || body.Account == "" {
		_i.respond(ctx, 400, nil, "orderHash and account are required")
		return
	}

	result, err := _i.aggregatorService.FulfillOrder(context.Background(), body.OrderHash, body.Account, body.Recipient, body.Referrer)
	if err != nil {
		_i.respond(ctx, 500, nil, "failed to fulfill order")
		return
	}

	_i.respond(ctx, 0, result, "Order fulfillment submitted")
}

func (_i *marketController) CheckHealthz(ctx *fasthttp.RequestCtx) {
	_i.respond(ctx, 0, "ok", "Request successful")
}

package controller

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
)

type collectionController struct {
	collectionService service.CollectionService
	logger            zerolog.Logger
}

type CollectionController interface {
	GetCount(ctx *fasthttp.RequestCtx)
	GetTokensCount(ctx *fasthttp.RequestCtx)
	GetAdmins(ctx *fasthttp.RequestCtx)
	GetOwnerTokens(ctx *fasthttp.RequestCtx)
	Create(ctx *fasthttp.RequestCtx)
	SetSponsor(ctx *fasthttp.RequestCtx)
	RemoveSponsor(ctx *fasthttp.RequestCtx)
	ConfirmSponsorship(ctx *fasthttp.RequestCtx)
	SetSchemaVersion(ctx *fasthttp.RequestCtx)
	SetOffChainSchema(ctx *fasthttp.RequestCtx)
	AddAdmin(ctx *fasthttp.RequestCtx)
	RemoveAdmin(ctx *fasthttp.RequestCtx)
	SaveConstSchema(ctx *fasthttp.RequestCtx)
	SaveVariableSchema(ctx *fasthttp.RequestCtx)
}

func NewCollectionController(collectionService service.CollectionService, logger zerolog.Logger) CollectionController {
	return &collectionController{
		collectionService: collectionService,
		logger:            logger,
	}
}

func (_i *collectionController) respond(ctx *fasthttp.RequestCtx, code int, data interface{}, message string) {
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

func (_i *collectionController) collectionID(ctx *fasthttp.RequestCtx) (uint32, bool) {
	raw, _ := ctx.UserValue("id").(string)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		_i.respond(ctx, 400, nil, "invalid collection id")
		return 0, false
	}
	return uint32(id), true
}

// respondTx maps the terminal transaction event to the response envelope.
func (_i *collectionController) respondTx(ctx *fasthttp.RequestCtx, operation string, run func(context.Context) (interface{}, error)) {
	result, err := run(context.Background())
	if err != nil {
		if errors.Is(err, service.ErrCollectionAddingDisabled) || errors.Is(err, service.ErrTokenEditingDisabled) {
			_i.respond(ctx, 403, nil, err.Error())
			return
		}
		_i.logger.Error().Err(err).Str("operation", operation).Msg("collection operation failed")
		_i.respond(ctx, 500, nil, err.Error())
		return
	}

	_i.respond(ctx, 0, result, "Request successful")
}

func (_i *collectionController) GetCount(ctx *fasthttp.RequestCtx) {
	count, _ := _i.collectionService.CollectionCount(context.Background())
	_i.respond(ctx, 0, count, "Request successful")
}

func (_i *collectionController) GetTokensCount(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	count, _ := _i.collectionService.TokensCount(context.Background(), id)
	_i.respond(ctx, 0, count, "Request successful")
}

func (_i *collectionController) GetAdmins(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	admins, _ := _i.collectionService.AdminList(context.Background(), id)
	_i.respond(ctx, 0, admins, "Request successful")
}

func (_i *collectionController) GetOwnerTokens(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	owner, _ := ctx.UserValue("owner").(string)
	tokens, _ := _i.collectionService.TokensOf(context.Background(), id, owner)
	_i.respond(ctx, 0, tokens, "Request successful")
}

type createCollectionBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TokenPrefix string `json:"tokenPrefix"`
}

func (_i *collectionController) Create(ctx *fasthttp.RequestCtx) {
	var body createCollectionBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body.Name == "" {
		_i.respond(ctx, 400, nil, "name is required")
		return
	}

	_i.respondTx(ctx, "create_collection", func(c context.Context) (interface{}, error) {
		return _i.collectionService.CreateCollection(c, body.Name, body.Description, body.TokenPrefix)
	})
}

type sponsorBody struct {
	Sponsor string `json:"sponsor"`
}

func (_i *collectionController) SetSponsor(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body sponsorBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body.Sponsor == "" {
		_i.respond(ctx, 400, nil, "sponsor is required")
		return
	}

	_i.respondTx(ctx, "set_collection_sponsor", func(c context.Context) (interface{}, error) {
		return _i.collectionService.SetSponsor(c, id, body.Sponsor)
	})
}

func (_i *collectionController) RemoveSponsor(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	_i.respondTx(ctx, "remove_collection_sponsor", func(c context.Context) (interface{}, error) {
		return _i.collectionService.RemoveSponsor(c, id)
	})
}

func (_i *collectionController) ConfirmSponsorship(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	_i.respondTx(ctx, "confirm_sponsorship", func(c context.Context) (interface{}, error) {
		return _i.collectionService.ConfirmSponsorship(c, id)
	})
}

type schemaVersionBody struct {
	Version string `json:"version"`
}

func (_i *collectionController) SetSchemaVersion(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body schemaVersionBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body.Version == "" {
		_i.respond(ctx, 400, nil, "version is required")
		return
	}

	_i.respondTx(ctx, "set_schema_version", func(c context.Context) (interface{}, error) {
		return _i.collectionService.SetSchemaVersion(c, id, body.Version)
	})
}

type schemaBody struct {
	Schema string `json:"schema"`
}

func (_i *collectionController) SetOffChainSchema(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body schemaBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		_i.respond(ctx, 400, nil, "invalid request body")
		return
	}

	_i.respondTx(ctx, "set_offchain_schema", func(c context.Context) (interface{}, error) {
		return _i.collectionService.SetOffChainSchema(c, id, []byte(body.Schema))
	})
}

type adminBody struct {
	Admin string `json:"admin"`
}

func (_i *collectionController) AddAdmin(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body adminBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body.Admin == "" {
		_i.respond(ctx, 400, nil, "admin is required")
		return
	}

	_i.respondTx(ctx, "add_collection_admin", func(c context.Context) (interface{}, error) {
		return _i.collectionService.AddAdmin(c, id, body.Admin)
	})
}

func (_i *collectionController) RemoveAdmin(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body adminBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body.Admin == "" {
		_i.respond(ctx, 400, nil, "admin is required")
		return
	}

	_i.respondTx(ctx, "remove_collection_admin", func(c context.Context) (interface{}, error) {
		return _i.collectionService.RemoveAdmin(c, id, body.Admin)
	})
}

func (_i *collectionController) SaveConstSchema(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body schemaBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		_i.respond(ctx, 400, nil, "invalid request body")
		return
	}

	_i.respondTx(ctx, "set_const_on_chain_schema", func(c context.Context) (interface{}, error) {
		return _i.collectionService.SaveConstSchema(c, id, []byte(body.Schema))
	})
}

func (_i *collectionController) SaveVariableSchema(ctx *fasthttp.RequestCtx) {
	id, ok := _i.collectionID(ctx)
	if !ok {
		return
	}
	var body schemaBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		_i.respond(ctx, 400, nil, "invalid request body")
		return
	}

	_i.respondTx(ctx, "set_variable_on_chain_schema", func(c context.Context) (interface{}, error) {
		return _i.collectionService.SaveVariableSchema(c, id, []byte(body.Schema))
	})
}

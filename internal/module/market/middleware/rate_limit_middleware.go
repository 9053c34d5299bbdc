package middleware

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/unqnft/marketplace-proxy/internal/module/market/service"
)

// RateLimitMiddleware answers CORS preflights and enforces the per-key
// request budget. Keyless callers are allowed but share the anonymous budget.
func RateLimitMiddleware(rateLimiterService *service.RateLimiterService, logger zerolog.Logger) func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Method()) == fasthttp.MethodOptions {
				handleCors(ctx)
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}

			apiKey := string(ctx.Request.Header.Peek("X-API-KEY"))
			if apiKey == "" {
				apiKey = string(ctx.QueryArgs().Peek("x_api_key"))
			}

			allowed, err := rateLimiterService.Allow(context.Background(), apiKey)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to check rate limiter")
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBody([]byte("rate limiter unavailable"))
				return
			}

			if !allowed {
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				ctx.SetBody([]byte("Too Many Requests"))
				return
			}

			handleCors(ctx)
			next(ctx)
		}
	}
}

func handleCors(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, X-API-KEY")
	ctx.Response.Header.Set("Access-Control-Max-Age", "86400")
}

package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/unqnft/marketplace-proxy/internal/module/shared"
)

// Status classifies a fetch outcome so callers can tell "no data" apart from
// "the fetch failed".
type Status int

const (
	StatusOk Status = iota
	StatusEmpty
	StatusFailed
)

type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

func (r Result[T]) IsOk() bool     { return r.Status == StatusOk }
func (r Result[T]) IsEmpty() bool  { return r.Status == StatusEmpty }
func (r Result[T]) IsFailed() bool { return r.Status == StatusFailed }

func Ok[T any](value T) Result[T] {
	return Result[T]{Status: StatusOk, Value: value}
}

func Empty[T any]() Result[T] {
	return Result[T]{Status: StatusEmpty}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

// Client issues single-shot JSON fetches. It keeps no state between calls.
type Client struct {
	http   shared.HTTPClient
	logger zerolog.Logger
}

func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "market-client").Logger(),
	}
}

// NewClientWithHTTP lets tests swap the transport.
func NewClientWithHTTP(httpClient shared.HTTPClient, logger zerolog.Logger) *Client {
	return &Client{http: httpClient, logger: logger}
}

// Fetch performs one GET round trip and delivers exactly one Result on the
// returned channel before closing it. Failures are delivered as values, never
// as panics, so receivers can switch on Status without recover blocks.
func Fetch[T any](c *Client, ctx context.Context, url string) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)
		ch <- fetchOnce[T](c, ctx, url)
	}()

	return ch
}

func fetchOnce[T any](c *Client, ctx context.Context, url string) Result[T] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Failed[T](fmt.Errorf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("fetch transport failure")
		return Failed[T](fmt.Errorf("failed to execute request: %v", err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Failed[T](fmt.Errorf("failed to read response body: %v", err))
	}

	if res.StatusCode == http.StatusNotFound || len(body) == 0 {
		return Empty[T]()
	}

	if res.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", res.StatusCode).Str("url", url).Msg("fetch non-200 response")
		return Failed[T](fmt.Errorf("failed to get response, status code: %d", res.StatusCode))
	}

	var apiErr apiError
	if err := shared.ParseJSONResponse(body, &apiErr); err == nil && apiErr.Error != "" {
		return Failed[T](fmt.Errorf("remote error: %s", apiErr.Error))
	}

	var value T
	if err := shared.ParseJSONResponse(body, &value); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("fetch decode failure")
		return Failed[T](err)
	}

	return Ok(value)
}

package aemet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/madridclima/weather-etl/internal/domain"
)

const defaultBaseURL = "https://opendata.aemet.es/opendata/api"

var (
	// ErrNoDataURL means the first-step response carried no "datos" URL.
	ErrNoDataURL = errors.New("aemet: no data URL in response")

	errRateLimited = errors.New("aemet: rate limited")
	errServerError = errors.New("aemet: server error")
)

// Client fetches hourly municipality forecasts from AEMET OpenData. Every
// fetch is the two-step dance the API requires: an authenticated request that
// answers with a data URL, then an unauthenticated request to that URL for
// the actual payload. Requests run behind a circuit breaker with bounded
// retries and exponential backoff.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates an AEMET client. maxRetries bounds the retry attempts
// per request on top of the initial one.
func NewClient(apiKey string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "aemet",
			Timeout: 60 * time.Second,
		}),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// FetchHourlyForecast retrieves the hourly forecast for a municipality
// identified by its INE code (e.g. "28079" for Madrid).
func (c *Client) FetchHourlyForecast(ctx context.Context, municipalityCode string) (*Forecast, error) {
	endpoint := fmt.Sprintf("%s/prediccion/especifica/municipio/horaria/%s", c.baseURL, municipalityCode)

	body, err := c.get(ctx, endpoint, true)
	if err != nil {
		return nil, fmt.Errorf("fetch data URL: %w", err)
	}

	var ind indirection
	if err := json.Unmarshal(body, &ind); err != nil {
		return nil, fmt.Errorf("decode indirection response: %w", err)
	}
	if ind.Datos == "" {
		return nil, fmt.Errorf("%w (estado %d: %s)", ErrNoDataURL, ind.Estado, ind.Descripcion)
	}

	c.logger.Debug("fetching forecast payload", "url", ind.Datos)
	body, err = c.get(ctx, ind.Datos, false)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast payload: %w", err)
	}

	var forecasts []Forecast
	if err := json.Unmarshal(body, &forecasts); err != nil {
		return nil, fmt.Errorf("decode forecast payload: %w", err)
	}
	if len(forecasts) == 0 {
		return nil, errors.New("aemet: empty forecast payload")
	}
	return &forecasts[0], nil
}

// FetchHourlyTable fetches the hourly forecast and flattens it into a raw
// observation table, one row per forecast hour.
func (c *Client) FetchHourlyTable(ctx context.Context, municipalityCode string) (*domain.Table, error) {
	forecast, err := c.FetchHourlyForecast(ctx, municipalityCode)
	if err != nil {
		return nil, err
	}
	return ParseForecast(forecast)
}

// get performs one GET with retries, backoff, and the circuit breaker.
// Rate limiting and 5xx responses are retried; other non-200 statuses fail
// immediately.
func (c *Client) get(ctx context.Context, url string, authenticated bool) ([]byte, error) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 5 * time.Second

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.doOnce(ctx, url, authenticated)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, err
		}
		if !errors.Is(err, errRateLimited) && !errors.Is(err, errServerError) {
			return nil, err
		}

		lastErr = err
		if attempt >= c.maxRetries {
			return nil, lastErr
		}

		c.logger.Warn("aemet request failed, retrying", "error", err, "attempt", attempt+1, "backoff", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) doOnce(ctx context.Context, url string, authenticated bool) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if authenticated {
			req.Header.Set("api_key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("aemet: unexpected status %d: %s", resp.StatusCode, body)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

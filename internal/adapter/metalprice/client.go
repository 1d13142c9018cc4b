package metalprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/port"
)

var ErrRateMissing = errors.New("rate missing from provider response")

type Config struct {
	BaseURL      string
	APIKey       string
	BaseCurrency string
	Timeout      time.Duration

	// Breaker opens after FailureThreshold consecutive failures and probes
	// again after OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Client quotes metal prices per troy ounce from a metalpriceapi-style
// HTTP endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[decimal.Decimal]
	logger  *zap.Logger
}

var _ port.RateProvider = (*Client)(nil)

func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "INR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
		Name:        "metal-price-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// FetchRate returns the price of one troy ounce of symbol in the base currency.
func (c *Client) FetchRate(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return c.breaker.Execute(func() (decimal.Decimal, error) {
		return c.fetch(ctx, symbol)
	})
}

type latestResponse struct {
	Success bool                       `json:"success"`
	Base    string                     `json:"base"`
	Rates   map[string]decimal.Decimal `json:"rates"`
	Error   *struct {
		Code    int    `json:"statusCode"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("api_key", c.cfg.APIKey)
	q.Set("base", c.cfg.BaseCurrency)
	q.Set("currencies", symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request latest rates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("latest rates failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var res latestResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	if !res.Success {
		if res.Error != nil {
			return decimal.Zero, fmt.Errorf("provider error %d: %s", res.Error.Code, res.Error.Message)
		}
		return decimal.Zero, errors.New("provider reported failure")
	}

	return perOunce(res.Rates, c.cfg.BaseCurrency, symbol)
}

// perOunce prefers the direct quote (e.g. INRXAU, base currency per ounce).
// Otherwise it inverts the plain symbol rate, which is ounces per unit of
// base currency.
func perOunce(rates map[string]decimal.Decimal, base, symbol string) (decimal.Decimal, error) {
	if direct, ok := rates[base+symbol]; ok && direct.IsPositive() {
		return direct, nil
	}
	if inverse, ok := rates[symbol]; ok && inverse.IsPositive() {
		return decimal.NewFromInt(1).DivRound(inverse, 8), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrRateMissing, symbol)
}

// Package venue предоставляет клиент внешних сигналов площадок:
// история цен, цена газа, состояние торговых венью.
package venue

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradeguard/pkg/ratelimit"
	"tradeguard/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Candle - свеча истории цен
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
}

// Health - состояние торгового венью
type Health struct {
	Venue     string    `json:"venue"`
	Healthy   bool      `json:"healthy"`
	LatencyMs int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Signals - интерфейс источника внешних сигналов (мокается в тестах)
type Signals interface {
	// GetTickerHistory возвращает последние limit минутных свечей по символу
	GetTickerHistory(ctx context.Context, symbol string, limit int) ([]Candle, error)
	// GetGasPrice возвращает текущую цену газа в wei
	GetGasPrice(ctx context.Context) (uint64, error)
	// GetHealth возвращает состояние указанного венью
	GetHealth(ctx context.Context, venue string) (Health, error)
}

// Config - настройки клиента сигналов
type Config struct {
	BaseURL string

	// Таймауты
	ConnectTimeout time.Duration // default: 5s
	TotalTimeout   time.Duration // default: 30s

	// Connection pooling
	MaxIdleConnsPerHost int           // default: 10
	IdleConnTimeout     time.Duration // default: 90s

	// Лимит запросов к источнику (запросов в секунду)
	RequestsPerSecond float64 // default: 5
}

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:             baseURL,
		ConnectTimeout:      5 * time.Second,
		TotalTimeout:        30 * time.Second,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		RequestsPerSecond:   5,
	}
}

// Client - HTTP клиент внешних сигналов
//
// Каждый вызов проходит rate limiter (источник сигналов общий для всех
// клиентов платформы) и network retry.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.RateLimiter
	retryer *retry.Retryer
}

// NewClient создает клиент с connection pooling и rate limiting
func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 30 * time.Second
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.TotalTimeout,
		},
		limiter: ratelimit.NewRateLimiter(cfg.RequestsPerSecond, cfg.RequestsPerSecond*2),
		retryer: retry.NewRetryer(retry.NetworkConfig()).WithRetryIf(func(err error) bool {
			return retry.IsRetryable(err) && retry.RetryIfNotContext(err)
		}),
	}
}

// GetTickerHistory возвращает последние limit минутных свечей по символу
func (c *Client) GetTickerHistory(ctx context.Context, symbol string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1m")
	q.Set("limit", strconv.Itoa(limit))

	var candles []Candle
	if err := c.getJSON(ctx, "/v1/market/candles?"+q.Encode(), &candles); err != nil {
		return nil, fmt.Errorf("ticker history %s: %w", symbol, err)
	}
	return candles, nil
}

// gasResponse - ответ эндпоинта цены газа
type gasResponse struct {
	Wei string `json:"wei"`
}

// GetGasPrice возвращает текущую цену газа в wei
func (c *Client) GetGasPrice(ctx context.Context) (uint64, error) {
	var resp gasResponse
	if err := c.getJSON(ctx, "/v1/chain/gas", &resp); err != nil {
		return 0, fmt.Errorf("gas price: %w", err)
	}

	// Цена приходит строкой: uint64 в JSON теряет точность у некоторых парсеров
	wei, err := strconv.ParseUint(resp.Wei, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse gas price %q: %w", resp.Wei, err)
	}
	return wei, nil
}

// GetHealth возвращает состояние указанного венью
func (c *Client) GetHealth(ctx context.Context, venue string) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/v1/venues/"+url.PathEscape(venue)+"/health", &h); err != nil {
		return Health{}, fmt.Errorf("venue health %s: %w", venue, err)
	}
	return h, nil
}

// getJSON выполняет GET с rate limit, retry и декодированием ответа
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return c.retryer.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// 4xx не лечится повтором
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
			}
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	})
}

// Close закрывает idle соединения (graceful shutdown)
func (c *Client) Close() {
	if transport, ok := c.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

var _ Signals = (*Client)(nil)

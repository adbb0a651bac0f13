package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/logger"
	"crossguard/internal/market"
	"crossguard/internal/pkg/circuit"
	symbolpkg "crossguard/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

// Binance error codes that leave the outcome unknown.
var transientCodes = map[int64]bool{
	-1000: true, // unknown error
	-1001: true, // disconnected
	-1003: true, // too many requests
	-1006: true, // unexpected response
	-1007: true, // timeout waiting for backend
	-1008: true, // server busy
	-1021: true, // timestamp outside recvWindow
}

const (
	codeOrderNotExist   = -2013
	codeDuplicateClient = -4116 // ClientOrderId is duplicated
)

// Client 基于 go-binance futures SDK，同时实现 exchange.Gateway 与 market.Source。
type Client struct {
	cfg     Config
	client  *futures.Client
	limiter *rate.Limiter
	breaker *circuit.CircuitBreaker

	stepMu sync.RWMutex
	steps  map[string]float64

	statsMu sync.Mutex
	stats   market.SourceStats
}

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Client{
		cfg:     final,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(final.RateLimit), final.RateBurst),
		breaker: circuit.NewCircuitBreaker("binance-futures", final.BreakerThreshold, final.BreakerTimeout),
		steps:   make(map[string]float64),
	}, nil
}

func (c *Client) Name() string {
	if c.cfg.Testnet {
		return "binance-testnet"
	}
	return "binance"
}

func (c *Client) BaseURL() string { return c.cfg.RESTBaseURL }

// BreakerState exposes the REST breaker for the dashboard.
func (c *Client) BreakerState() circuit.State {
	return c.breaker.State()
}

// call rate-limits fn, runs it behind the breaker and classifies its error.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return exchange.Transient(op, err)
	}
	c.statsMu.Lock()
	c.stats.Requests++
	c.statsMu.Unlock()

	var classified error
	err := c.breaker.Do(func() error {
		if err := fn(ctx); err != nil {
			classified = classify(op, err)
			return classified
		}
		return nil
	}, func(err error) bool {
		return errors.Is(err, exchange.ErrTransient)
	})
	if err == nil {
		return nil
	}
	if classified == nil {
		// breaker open, fn never ran
		classified = exchange.Transient(op, err)
	}
	c.statsMu.Lock()
	c.stats.Failures++
	c.stats.LastError = classified.Error()
	c.statsMu.Unlock()
	return classified
}

func classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == codeOrderNotExist:
			return &exchange.Error{Kind: exchange.ErrOrderNotFound, Op: op, Code: apiErr.Code, Msg: apiErr.Message}
		case apiErr.Code == codeDuplicateClient:
			return exchange.Duplicate(op, apiErr.Code, apiErr.Message)
		case transientCodes[apiErr.Code]:
			return &exchange.Error{Kind: exchange.ErrTransient, Op: op, Code: apiErr.Code, Msg: apiErr.Message}
		default:
			return exchange.Rejected(op, apiErr.Code, apiErr.Message)
		}
	}
	// network failures, timeouts and non-JSON 5xx bodies: outcome unknown
	return exchange.Transient(op, err)
}

func toSymbol(s string) string {
	if b := symbolpkg.Binance(s); b != "" {
		return b
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func (c *Client) Stats() market.SourceStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Client) Close() error {
	st := c.Stats()
	logger.Debugf("[binance] client closed, requests=%d failures=%d", st.Requests, st.Failures)
	return nil
}

package gateway

import (
	"fmt"
	"strings"

	"crossguard/internal/config"
	"crossguard/internal/gateway/binance"
	"crossguard/internal/gateway/exchange"
	"crossguard/internal/gateway/paper"
	"crossguard/internal/logger"
)

// Set 是按配置组装好的交易所接入。
// Market 始终是 binance 客户端（K 线、标记价格、资金费）；Exchange 在 dry-run 下是模拟盘。
type Set struct {
	Exchange exchange.Gateway
	Market   *binance.Client
	Paper    *paper.Gateway
}

// DryRun reports whether orders are simulated locally.
func (s Set) DryRun() bool { return s.Paper != nil }

func NewBinanceFromConfig(cfg *config.Config) (*binance.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	ex := cfg.Exchange
	switch strings.ToLower(strings.TrimSpace(ex.Name)) {
	case "", "binance", "binance-futures":
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", ex.Name)
	}
	return binance.New(binance.Config{
		APIKey:           ex.APIKey,
		APISecret:        ex.SecretKey,
		RESTBaseURL:      ex.RESTBaseURL,
		Testnet:          ex.Testnet,
		HTTPTimeout:      ex.HTTPTimeout(),
		Asset:            cfg.Trading.Asset,
		ProxyEnabled:     ex.Proxy.Enabled,
		RESTProxyURL:     ex.Proxy.RESTURL,
		RateLimit:        ex.RateLimit,
		RateBurst:        ex.RateBurst,
		BreakerThreshold: ex.BreakerThreshold,
		BreakerTimeout:   ex.BreakerTimeout(),
	})
}

// NewFromConfig builds the live gateway, or a paper gateway over live market data when dry_run is set.
func NewFromConfig(cfg *config.Config) (Set, error) {
	client, err := NewBinanceFromConfig(cfg)
	if err != nil {
		return Set{}, err
	}
	if !cfg.Trading.DryRun {
		logger.Infof("交易所: binance futures 实盘 base=%s", client.BaseURL())
		return Set{Exchange: client, Market: client}, nil
	}
	pg := paper.New(paper.Config{
		Balance:        cfg.Trading.PaperBalance,
		Asset:          cfg.Trading.Asset,
		CommissionRate: cfg.Trading.CommissionRate,
		Leverage:       cfg.Trading.Leverage,
		HedgeMode:      cfg.Trading.HedgeMode,
	}, client)
	logger.Infof("交易所: paper 模拟盘 balance=%.2f %s", cfg.Trading.PaperBalance, cfg.Trading.Asset)
	return Set{Exchange: pg, Market: client, Paper: pg}, nil
}

package gateway

import (
	"testing"

	"crossguard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Exchange: config.ExchangeConfig{Name: "binance", Testnet: true},
		Trading: config.TradingConfig{
			Asset:          "USDT",
			Leverage:       20,
			CommissionRate: 0.0005,
			PaperBalance:   500,
			DryRun:         true,
		},
	}
}

func TestNewFromConfigDryRunUsesPaper(t *testing.T) {
	set, err := NewFromConfig(baseConfig())
	require.NoError(t, err)
	assert.True(t, set.DryRun())
	assert.Equal(t, "paper", set.Exchange.Name())
	require.NotNil(t, set.Market)
	assert.Equal(t, "https://testnet.binancefuture.com", set.Market.BaseURL())
}

func TestNewFromConfigLive(t *testing.T) {
	cfg := baseConfig()
	cfg.Trading.DryRun = false
	cfg.Exchange.APIKey, cfg.Exchange.SecretKey = "k", "s"
	set, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.False(t, set.DryRun())
	assert.Equal(t, "binance-testnet", set.Exchange.Name())
}

func TestUnsupportedExchange(t *testing.T) {
	cfg := baseConfig()
	cfg.Exchange.Name = "gate"
	_, err := NewFromConfig(cfg)
	assert.Error(t, err)
	_, err = NewBinanceFromConfig(nil)
	assert.Error(t, err)
}

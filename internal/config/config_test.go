package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaultsAndIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "risk.yaml", `
risk:
  stop_loss_pct: 0.03
  max_positions: 2
`)
	main := writeFile(t, dir, "config.yaml", `
include:
  - risk.yaml
strategy:
  symbols: ["btc/usdt", "ETHUSDT", "BTCUSDT"]
  ema_period: 9
  ma_period: 21
trading:
  leverage: 10
`)
	cfg, err := Load(main)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Strategy.Symbols)
	assert.Equal(t, "15m", cfg.Strategy.Timeframe)
	assert.Equal(t, 9, cfg.Strategy.EMAPeriod)
	assert.Equal(t, 10, cfg.Trading.Leverage)
	assert.Equal(t, 0.5, cfg.Trading.PositionFraction)
	assert.Equal(t, 0.0005, cfg.Trading.CommissionRate)
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, 0.03, cfg.Risk.StopLossPct)
	assert.Equal(t, 2, cfg.Risk.MaxPositions)
	assert.Equal(t, 0.04, cfg.Risk.TakeProfitPct)
	assert.Equal(t, 3, cfg.Execution.MaxAttempts)
	assert.Equal(t, "poll", cfg.Scheduler.Mode)
	assert.Equal(t, "text", cfg.App.LogFormat)
	assert.True(t, cfg.Scheduler.RunImmediately)
}

func TestExplicitFalseSurvivesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_SECRET_KEY", "secret")
	main := writeFile(t, dir, "config.yaml", `
trading:
  dry_run: false
scheduler:
  run_immediately: false
`)
	cfg, err := Load(main)
	require.NoError(t, err)
	assert.False(t, cfg.Trading.DryRun)
	assert.False(t, cfg.Scheduler.RunImmediately)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
}

func TestLiveModeRequiresKeys(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_SECRET_KEY", "")
	main := writeFile(t, dir, "config.yaml", "trading:\n  dry_run: false\n")
	_, err := Load(main)
	assert.ErrorContains(t, err, "api_key")
}

func TestEnvDryRunOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CROSSGUARD_DRY_RUN", "true")
	main := writeFile(t, dir, "config.yaml", "trading:\n  dry_run: false\n")
	cfg, err := Load(main)
	require.NoError(t, err)
	assert.True(t, cfg.Trading.DryRun)
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]string{
		"log format":    "app:\n  log_format: xml\n",
		"bad symbol":    "strategy:\n  symbols: [\"???\"]\n",
		"bad timeframe": "strategy:\n  timeframe: 7x\n",
		"leverage":      "trading:\n  leverage: 200\n",
		"fraction":      "trading:\n  position_fraction: 1.5\n",
		"stop loss":     "risk:\n  stop_loss_pct: 1.2\n",
		"mode":          "scheduler:\n  mode: cron\n",
		"telegram":      "notify:\n  telegram:\n    enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			main := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(main)
			assert.Error(t, err)
		})
	}
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.ErrorContains(t, err, "include cycle")
}

func TestWatcherReloadRisk(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "config.yaml", "risk:\n  max_positions: 1\n")
	cfg, err := Load(main)
	require.NoError(t, err)
	w, err := Watch(main, cfg.Risk)
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		got []RiskConfig
	)
	w.Subscribe(func(r RiskConfig) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	writeFile(t, dir, "config.yaml", "risk:\n  max_positions: 3\n  daily_loss_limit: 20\n")
	require.NoError(t, w.reload())
	w.notify()
	mu.Lock()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	mu.Unlock()
	assert.Equal(t, 3, last.MaxPositions)
	assert.Equal(t, 20.0, last.DailyLossLimit)
	assert.Equal(t, 0.02, last.StopLossPct)

	writeFile(t, dir, "config.yaml", "risk:\n  stop_loss_pct: 5\n")
	assert.Error(t, w.reload())
	assert.Equal(t, 3, w.Risk().MaxPositions)
}

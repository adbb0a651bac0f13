package config

import (
	"fmt"
	"strings"

	"crossguard/internal/pkg/symbol"
	"crossguard/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(c.Trading.DryRun); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("app.log_format: expect text or json, got %q", a.LogFormat)
	}
}

func (e *ExchangeConfig) validate(dryRun bool) error {
	if !strings.EqualFold(e.Name, "binance") {
		return fmt.Errorf("exchange.name: unsupported exchange %q", e.Name)
	}
	if !dryRun && (strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.SecretKey) == "") {
		return fmt.Errorf("exchange.api_key/secret_key required when trading.dry_run=false (set BINANCE_API_KEY / BINANCE_SECRET_KEY)")
	}
	if e.Proxy.Enabled && strings.TrimSpace(e.Proxy.RESTURL) == "" {
		return fmt.Errorf("exchange.proxy.rest_url required when proxy is enabled")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	norm, invalid := symbol.NormalizeList(s.Symbols)
	if len(invalid) > 0 {
		return fmt.Errorf("strategy.symbols contains invalid symbols: %s", strings.Join(invalid, ","))
	}
	if len(norm) == 0 {
		return fmt.Errorf("strategy.symbols requires at least one symbol")
	}
	s.Symbols = norm
	if _, ok := scheduler.ParseIntervalDuration(s.Timeframe); !ok {
		return fmt.Errorf("strategy.timeframe invalid: %q", s.Timeframe)
	}
	if s.EMAPeriod < 1 || s.MAPeriod < 1 {
		return fmt.Errorf("strategy.ema_period and strategy.ma_period must be >= 1")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.PositionFraction <= 0 || t.PositionFraction > 1 {
		return fmt.Errorf("trading.position_fraction must be in (0,1], got %v", t.PositionFraction)
	}
	if t.Leverage < 1 || t.Leverage > 125 {
		return fmt.Errorf("trading.leverage must be within 1-125, got %d", t.Leverage)
	}
	if t.CommissionRate < 0 || t.CommissionRate >= 0.01 {
		return fmt.Errorf("trading.commission_rate must be within [0,0.01), got %v", t.CommissionRate)
	}
	if t.DryRun && t.PaperBalance <= 0 {
		return fmt.Errorf("trading.paper_balance must be > 0 in dry run")
	}
	return nil
}

// Validate is exported so hot-reloaded risk sections are checked the same way.
func (r RiskConfig) Validate() error {
	if r.StopLossPct < 0 || r.StopLossPct >= 1 {
		return fmt.Errorf("risk.stop_loss_pct must be within [0,1), got %v", r.StopLossPct)
	}
	if r.TakeProfitPct < 0 {
		return fmt.Errorf("risk.take_profit_pct must be >= 0, got %v", r.TakeProfitPct)
	}
	if r.MaxPositions < 0 {
		return fmt.Errorf("risk.max_positions must be >= 0")
	}
	if r.DailyLossLimit < 0 {
		return fmt.Errorf("risk.daily_loss_limit must be >= 0")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if e.MaxAttempts < 1 {
		return fmt.Errorf("execution.max_attempts must be >= 1")
	}
	if e.MaxBackoffMillis < e.RetryBackoffMillis {
		return fmt.Errorf("execution.max_backoff_ms must be >= retry_backoff_ms")
	}
	if e.CallTimeoutSeconds <= 0 || e.ShutdownGraceSeconds <= 0 {
		return fmt.Errorf("execution.call_timeout_seconds and shutdown_grace_seconds must be > 0")
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	switch s.Mode {
	case "close", "poll":
	default:
		return fmt.Errorf("scheduler.mode must be close or poll, got %q", s.Mode)
	}
	if s.DecisionIntervalSeconds <= 0 || s.SnapshotIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler intervals must be > 0")
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("scheduler.offset_seconds must be >= 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing (TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID)")
	}
	return nil
}

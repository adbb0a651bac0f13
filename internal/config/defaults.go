package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9991"
	defaultAppLogPath       = "/data/logs/crossguard.log"
	defaultAppDBPath        = "/data/db/crossguard.db"
	defaultExchangeName     = "binance"
	defaultHTTPTimeout      = 15
	defaultRateLimit        = 10
	defaultRateBurst        = 5
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30
	defaultTimeframe        = "15m"
	defaultEMAPeriod        = 2
	defaultMAPeriod         = 4
	defaultPositionFraction = 0.5
	defaultLeverage         = 20
	defaultCommissionRate   = 0.0005
	defaultAsset            = "USDT"
	defaultPaperBalance     = 1000
	defaultStopLossPct      = 0.02
	defaultTakeProfitPct    = 0.04
	defaultMaxPositions     = 1
	defaultDailyLossLimit   = 50
	defaultMaxAttempts      = 3
	defaultRetryBackoffMs   = 1000
	defaultMaxBackoffMs     = 30000
	defaultCallTimeout      = 10
	defaultShutdownGrace    = 30
	defaultFreshnessWindow  = 120
	defaultClockResync      = 600
	defaultSchedulerMode    = "poll"
	defaultDecisionInterval = 60
	defaultSchedulerOffset  = 5
	defaultSnapshotInterval = 300
	defaultKlineLimit       = 100
	defaultKlineMaxCached   = 300
	defaultRunImmediately   = true
	defaultDryRun           = true
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Execution.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Kline.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.db_path", &a.DBPath, defaultAppDBPath),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		intFieldDefault("exchange.http_timeout_seconds", &e.HTTPTimeoutSeconds, defaultHTTPTimeout),
		intFieldDefault("exchange.rate_burst", &e.RateBurst, defaultRateBurst),
		intFieldDefault("exchange.breaker_threshold", &e.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("exchange.breaker_timeout_seconds", &e.BreakerTimeoutSeconds, defaultBreakerTimeout),
		floatFieldDefault("exchange.rate_limit", &e.RateLimit, defaultRateLimit),
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.timeframe", &s.Timeframe, defaultTimeframe),
		intFieldDefault("strategy.ema_period", &s.EMAPeriod, defaultEMAPeriod),
		intFieldDefault("strategy.ma_period", &s.MAPeriod, defaultMAPeriod),
		fieldDefault{
			key:   "strategy.symbols",
			need:  func() bool { return len(s.Symbols) == 0 },
			apply: func() { s.Symbols = []string{"BTCUSDT"} },
		},
	)
	s.Timeframe = strings.ToLower(strings.TrimSpace(s.Timeframe))
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("trading.position_fraction", &t.PositionFraction, defaultPositionFraction),
		intFieldDefault("trading.leverage", &t.Leverage, defaultLeverage),
		floatFieldDefault("trading.commission_rate", &t.CommissionRate, defaultCommissionRate),
		stringFieldDefault("trading.asset", &t.Asset, defaultAsset),
		floatFieldDefault("trading.paper_balance", &t.PaperBalance, defaultPaperBalance),
		boolFieldDefault("trading.dry_run", &t.DryRun, defaultDryRun),
	)
	t.Asset = strings.ToUpper(t.Asset)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("risk.stop_loss_pct", &r.StopLossPct, defaultStopLossPct),
		floatFieldDefault("risk.take_profit_pct", &r.TakeProfitPct, defaultTakeProfitPct),
		intFieldDefault("risk.max_positions", &r.MaxPositions, defaultMaxPositions),
		floatFieldDefault("risk.daily_loss_limit", &r.DailyLossLimit, defaultDailyLossLimit),
	)
}

func (e *ExecutionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("execution.max_attempts", &e.MaxAttempts, defaultMaxAttempts),
		intFieldDefault("execution.retry_backoff_ms", &e.RetryBackoffMillis, defaultRetryBackoffMs),
		intFieldDefault("execution.max_backoff_ms", &e.MaxBackoffMillis, defaultMaxBackoffMs),
		intFieldDefault("execution.call_timeout_seconds", &e.CallTimeoutSeconds, defaultCallTimeout),
		intFieldDefault("execution.shutdown_grace_seconds", &e.ShutdownGraceSeconds, defaultShutdownGrace),
		intFieldDefault("execution.freshness_window_seconds", &e.FreshnessWindowSeconds, defaultFreshnessWindow),
		intFieldDefault("execution.clock_resync_seconds", &e.ClockResyncSeconds, defaultClockResync),
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("scheduler.mode", &s.Mode, defaultSchedulerMode),
		intFieldDefault("scheduler.decision_interval_seconds", &s.DecisionIntervalSeconds, defaultDecisionInterval),
		intFieldDefault("scheduler.offset_seconds", &s.OffsetSeconds, defaultSchedulerOffset),
		intFieldDefault("scheduler.snapshot_interval_seconds", &s.SnapshotIntervalSeconds, defaultSnapshotInterval),
		boolFieldDefault("scheduler.run_immediately", &s.RunImmediately, defaultRunImmediately),
	)
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
}

func (k *KlineConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("kline.limit", &k.Limit, defaultKlineLimit),
		intFieldDefault("kline.max_cached", &k.MaxCached, defaultKlineMaxCached),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

// boolFieldDefault only applies when the key is absent, so an explicit false survives.
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

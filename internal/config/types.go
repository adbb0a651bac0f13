package config

import (
	"strings"
	"time"
)

// Config 是 crossguard 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Trading   TradingConfig   `toml:"trading"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Kline     KlineConfig     `toml:"kline"`
	Notify    NotifyConfig    `toml:"notify"`

	// Path is the file Load read from; the risk watcher follows it.
	Path string `toml:"-"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	DBPath    string `toml:"db_path"`
}

type ExchangeConfig struct {
	Name                  string      `toml:"name"`
	RESTBaseURL           string      `toml:"rest_base_url"`
	Testnet               bool        `toml:"testnet"`
	APIKey                string      `toml:"api_key"`
	SecretKey             string      `toml:"secret_key"`
	HTTPTimeoutSeconds    int         `toml:"http_timeout_seconds"`
	RateLimit             float64     `toml:"rate_limit"`
	RateBurst             int         `toml:"rate_burst"`
	BreakerThreshold      int         `toml:"breaker_threshold"`
	BreakerTimeoutSeconds int         `toml:"breaker_timeout_seconds"`
	Proxy                 ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

// StrategyConfig 均线交叉信号参数。
type StrategyConfig struct {
	Symbols   []string `toml:"symbols"`
	Timeframe string   `toml:"timeframe"`
	EMAPeriod int      `toml:"ema_period"`
	MAPeriod  int      `toml:"ma_period"`
}

// TradingConfig 控制仓位大小、杠杆与模拟盘。
type TradingConfig struct {
	PositionFraction float64 `toml:"position_fraction"`
	Leverage         int     `toml:"leverage"`
	CommissionRate   float64 `toml:"commission_rate"`
	Asset            string  `toml:"asset"`
	DryRun           bool    `toml:"dry_run"`
	PaperBalance     float64 `toml:"paper_balance"`
	HedgeMode        bool    `toml:"hedge_mode"`
}

// RiskConfig 可热更新。
type RiskConfig struct {
	StopLossPct    float64 `toml:"stop_loss_pct"`
	TakeProfitPct  float64 `toml:"take_profit_pct"`
	MaxPositions   int     `toml:"max_positions"`
	DailyLossLimit float64 `toml:"daily_loss_limit"`
}

type ExecutionConfig struct {
	MaxAttempts            int `toml:"max_attempts"`
	RetryBackoffMillis     int `toml:"retry_backoff_ms"`
	MaxBackoffMillis       int `toml:"max_backoff_ms"`
	CallTimeoutSeconds     int `toml:"call_timeout_seconds"`
	ShutdownGraceSeconds   int `toml:"shutdown_grace_seconds"`
	FreshnessWindowSeconds int `toml:"freshness_window_seconds"`
	ClockResyncSeconds     int `toml:"clock_resync_seconds"`
}

type SchedulerConfig struct {
	// Mode: "close" runs once per bar close, "poll" runs every decision interval after the first close.
	Mode                    string `toml:"mode"`
	DecisionIntervalSeconds int    `toml:"decision_interval_seconds"`
	OffsetSeconds           int    `toml:"offset_seconds"`
	RunImmediately          bool   `toml:"run_immediately"`
	SnapshotIntervalSeconds int    `toml:"snapshot_interval_seconds"`
}

type KlineConfig struct {
	Limit     int `toml:"limit"`
	MaxCached int `toml:"max_cached"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (e ExchangeConfig) HTTPTimeout() time.Duration    { return seconds(e.HTTPTimeoutSeconds) }
func (e ExchangeConfig) BreakerTimeout() time.Duration { return seconds(e.BreakerTimeoutSeconds) }

func (e ExecutionConfig) CallTimeout() time.Duration     { return seconds(e.CallTimeoutSeconds) }
func (e ExecutionConfig) ShutdownGrace() time.Duration   { return seconds(e.ShutdownGraceSeconds) }
func (e ExecutionConfig) FreshnessWindow() time.Duration { return seconds(e.FreshnessWindowSeconds) }
func (e ExecutionConfig) ClockResync() time.Duration     { return seconds(e.ClockResyncSeconds) }
func (e ExecutionConfig) RetryBackoff() time.Duration {
	return time.Duration(e.RetryBackoffMillis) * time.Millisecond
}
func (e ExecutionConfig) MaxBackoff() time.Duration {
	return time.Duration(e.MaxBackoffMillis) * time.Millisecond
}

func (s SchedulerConfig) DecisionInterval() time.Duration { return seconds(s.DecisionIntervalSeconds) }
func (s SchedulerConfig) Offset() time.Duration           { return seconds(s.OffsetSeconds) }
func (s SchedulerConfig) SnapshotInterval() time.Duration { return seconds(s.SnapshotIntervalSeconds) }

func (s SchedulerConfig) PollMode() bool {
	return strings.EqualFold(strings.TrimSpace(s.Mode), "poll")
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

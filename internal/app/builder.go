package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crossguard/internal/config"
	"crossguard/internal/execution"
	"crossguard/internal/gateway"
	"crossguard/internal/gateway/exchange"
	"crossguard/internal/gateway/notifier"
	"crossguard/internal/logger"
	"crossguard/internal/market"
	"crossguard/internal/pkg/symbol"
	"crossguard/internal/reconcile"
	"crossguard/internal/risk"
	"crossguard/internal/signal"
	"crossguard/internal/snapshot"
	"crossguard/internal/store/sqlite"
	livehttp "crossguard/internal/transport/http/live"
)

// Exchange 是构建执行层所需的交易所接入。
type Exchange struct {
	Gateway exchange.Gateway
	Candles execution.CandleSource
	// Funding 为空时不同步资金费（dry-run）。
	Funding snapshot.FundingSource
	// Status 为空时 dashboard 显示 paper。
	Status livehttp.GatewayStatus
}

type AppBuilder struct {
	cfg *config.Config

	ledgerFn   func(config.AppConfig) (*sqlite.SqliteStore, error)
	exchangeFn func(*config.Config) (Exchange, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
	liveHTTPFn func(config.AppConfig, livehttp.ServerConfig) (*livehttp.Server, error)
	watchFn    func(path string, initial config.RiskConfig) (*config.Watcher, error)
}

type AppBuilderOption func(*AppBuilder)

// WithLedger 使用外部账本（测试）。
func WithLedger(st *sqlite.SqliteStore) AppBuilderOption {
	return func(b *AppBuilder) {
		b.ledgerFn = func(config.AppConfig) (*sqlite.SqliteStore, error) { return st, nil }
	}
}

// WithExchange 使用外部交易所接入（测试）。
func WithExchange(ex Exchange) AppBuilderOption {
	return func(b *AppBuilder) {
		b.exchangeFn = func(*config.Config) (Exchange, error) { return ex, nil }
	}
}

func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		ledgerFn:   openLedger,
		exchangeFn: buildExchange,
		notifierFn: newNotifier,
		liveHTTPFn: buildLiveHTTPServer,
		watchFn:    config.Watch,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	symbols, invalid := symbol.NormalizeList(cfg.Strategy.Symbols)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("strategy.symbols 含无效交易对: %s", strings.Join(invalid, ", "))
	}
	logger.Infof("✓ 已加载 %d 个交易对: %v", len(symbols), symbols)

	ledger, err := b.ledgerFn(cfg.App)
	if err != nil {
		return nil, fmt.Errorf("初始化账本失败: %w", err)
	}
	ex, err := b.exchangeFn(cfg)
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("初始化交易所失败: %w", err)
	}
	var (
		alerts    notifier.TextNotifier
		alertsBuf *notifier.Queue
	)
	if n := b.notifierFn(cfg.Notify); n != nil {
		alertsBuf = notifier.NewQueue(n, notifier.DefaultQueueSize)
		alerts = alertsBuf
	}

	limits := riskLimits(cfg.Risk, cfg.Trading.HedgeMode)
	rg := risk.New(limits, ledger, risk.WithTripHook(execution.BreakerHook(alerts)))
	tracker := reconcile.NewTracker(reconcile.New(rg.Levels, cfg.Trading.HedgeMode))
	evaluator := signal.New(signal.Params{EMAPeriod: cfg.Strategy.EMAPeriod, MAPeriod: cfg.Strategy.MAPeriod})
	gov := execution.New(
		executionConfig(cfg, symbols),
		ex.Gateway,
		ledger,
		rg,
		tracker,
		evaluator,
		ex.Candles,
		execution.WithNotifier(alerts),
		execution.WithCandleCache(market.NewCache()),
	)
	recorder := snapshot.NewRecorder(ledger, ex.Gateway, tracker, ex.Funding, cfg.Execution.CallTimeout())

	httpServer, err := b.liveHTTPFn(cfg.App, livehttp.ServerConfig{
		Ledger:          ledger,
		Book:            gov,
		Gateway:         ex.Status,
		Symbols:         symbols,
		LogPath:         cfg.App.LogPath,
		ShutdownTimeout: 5 * time.Second,
	})
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	var watcher *config.Watcher
	if path := strings.TrimSpace(cfg.Path); path != "" && b.watchFn != nil {
		watcher, err = b.watchFn(path, cfg.Risk)
		if err != nil {
			logger.Warnf("风控配置热更新未启用: %v", err)
		} else {
			watcher.Subscribe(riskListener(rg, cfg.Trading.HedgeMode))
		}
	}

	return &App{
		cfg:       cfg,
		symbols:   symbols,
		ledger:    ledger,
		gov:       gov,
		recorder:  recorder,
		liveHTTP:  httpServer,
		watcher:   watcher,
		alerts:    alertsBuf,
		decision:  decisionScheduler(cfg),
		snapshots: snapshotScheduler(cfg),
		Summary:   newStartupSummary(cfg, symbols, ex.Gateway.Name()),
	}, nil
}

func openLedger(cfg config.AppConfig) (*sqlite.SqliteStore, error) {
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		return nil, fmt.Errorf("app.db_path 未配置，无法初始化存储")
	}
	return sqlite.NewSqliteStore(path)
}

func buildExchange(cfg *config.Config) (Exchange, error) {
	set, err := gateway.NewFromConfig(cfg)
	if err != nil {
		return Exchange{}, err
	}
	ex := Exchange{Gateway: set.Exchange, Candles: set.Market}
	if !set.DryRun() {
		ex.Funding = set.Market
		ex.Status = set.Market
	}
	return ex, nil
}

func riskLimits(rc config.RiskConfig, hedge bool) risk.Limits {
	return risk.Limits{
		StopLossPct:    rc.StopLossPct,
		TakeProfitPct:  rc.TakeProfitPct,
		MaxPositions:   rc.MaxPositions,
		DailyLossLimit: rc.DailyLossLimit,
		HedgeMode:      hedge,
	}
}

func riskListener(rg *risk.Governor, hedge bool) config.RiskListener {
	return func(rc config.RiskConfig) {
		rg.UpdateLimits(riskLimits(rc, hedge))
		logger.Infof("风控参数已热更新: sl=%.4f tp=%.4f max_positions=%d daily_loss_limit=%.2f",
			rc.StopLossPct, rc.TakeProfitPct, rc.MaxPositions, rc.DailyLossLimit)
	}
}

func executionConfig(cfg *config.Config, symbols []string) execution.Config {
	ec := cfg.Execution
	return execution.Config{
		Symbols:          symbols,
		Interval:         cfg.Strategy.Timeframe,
		KlineLimit:       cfg.Kline.Limit,
		Leverage:         cfg.Trading.Leverage,
		PositionFraction: cfg.Trading.PositionFraction,
		CommissionRate:   cfg.Trading.CommissionRate,
		Asset:            cfg.Trading.Asset,
		DryRun:           cfg.Trading.DryRun,
		HedgeMode:        cfg.Trading.HedgeMode,
		MaxAttempts:      ec.MaxAttempts,
		RetryBackoff:     ec.RetryBackoff(),
		MaxBackoff:       ec.MaxBackoff(),
		CallTimeout:      ec.CallTimeout(),
		ShutdownGrace:    ec.ShutdownGrace(),
		FreshnessWindow:  ec.FreshnessWindow(),
		ClockResync:      ec.ClockResync(),
	}
}

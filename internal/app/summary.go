package app

import (
	"fmt"
	"strings"

	"crossguard/internal/config"
)

type StartupSummary struct {
	Gateway   string
	DryRun    bool
	Symbols   []string
	Strategy  StrategySummary
	Trading   TradingSummary
	Risk      config.RiskConfig
	Scheduler SchedulerSummary
	HTTPAddr  string
	DBPath    string
}

type StrategySummary struct {
	Timeframe string
	EMAPeriod int
	MAPeriod  int
}

type TradingSummary struct {
	Leverage         int
	PositionFraction float64
	CommissionRate   float64
	PaperBalance     float64
}

type SchedulerSummary struct {
	Mode             string
	DecisionInterval string
	SnapshotInterval string
	Offset           string
}

func newStartupSummary(cfg *config.Config, symbols []string, gateway string) *StartupSummary {
	return &StartupSummary{
		Gateway: gateway,
		DryRun:  cfg.Trading.DryRun,
		Symbols: symbols,
		Strategy: StrategySummary{
			Timeframe: cfg.Strategy.Timeframe,
			EMAPeriod: cfg.Strategy.EMAPeriod,
			MAPeriod:  cfg.Strategy.MAPeriod,
		},
		Trading: TradingSummary{
			Leverage:         cfg.Trading.Leverage,
			PositionFraction: cfg.Trading.PositionFraction,
			CommissionRate:   cfg.Trading.CommissionRate,
			PaperBalance:     cfg.Trading.PaperBalance,
		},
		Risk: cfg.Risk,
		Scheduler: SchedulerSummary{
			Mode:             cfg.Scheduler.Mode,
			DecisionInterval: cfg.Scheduler.DecisionInterval().String(),
			SnapshotInterval: cfg.Scheduler.SnapshotInterval().String(),
			Offset:           cfg.Scheduler.Offset().String(),
		},
		HTTPAddr: cfg.App.HTTPAddr,
		DBPath:   cfg.App.DBPath,
	}
}

func (s *StartupSummary) Print() {
	fmt.Print(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 80)
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(&b, line)

	mode := "实盘 (LIVE)"
	if s.DryRun {
		mode = "模拟盘 (DRY RUN)"
	}
	fmt.Fprintln(&b, "[交易所 (EXCHANGE)]")
	fmt.Fprintf(&b, "  接入: %s\n", s.Gateway)
	fmt.Fprintf(&b, "  模式: %s\n", mode)
	fmt.Fprintf(&b, "  交易对: %s\n", formatList(s.Symbols))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[信号 (SIGNAL)]")
	fmt.Fprintf(&b, "  周期: %s  EMA=%d  MA=%d\n", s.Strategy.Timeframe, s.Strategy.EMAPeriod, s.Strategy.MAPeriod)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[仓位 (SIZING)]")
	fmt.Fprintf(&b, "  杠杆: x%d  仓位比例: %.2f  手续费率: %.4f%%\n", s.Trading.Leverage, s.Trading.PositionFraction, s.Trading.CommissionRate*100)
	if s.DryRun {
		fmt.Fprintf(&b, "  模拟余额: %.2f\n", s.Trading.PaperBalance)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[风控 (RISK)]")
	fmt.Fprintf(&b, "  止损: %.2f%%  止盈: %.2f%%\n", s.Risk.StopLossPct*100, s.Risk.TakeProfitPct*100)
	fmt.Fprintf(&b, "  最大持仓数: %d\n", s.Risk.MaxPositions)
	if s.Risk.DailyLossLimit > 0 {
		fmt.Fprintf(&b, "  每日亏损上限: %.2f\n", s.Risk.DailyLossLimit)
	} else {
		fmt.Fprintln(&b, "  每日亏损上限: (未启用)")
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[调度 (SCHEDULER)]")
	fmt.Fprintf(&b, "  模式: %s  决策间隔: %s  偏移: %s  快照间隔: %s\n",
		s.Scheduler.Mode, s.Scheduler.DecisionInterval, s.Scheduler.Offset, s.Scheduler.SnapshotInterval)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "  dashboard: %s  账本: %s\n", s.HTTPAddr, s.DBPath)
	fmt.Fprintln(&b, line)
	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

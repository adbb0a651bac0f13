package app

import (
	"fmt"

	"crossguard/internal/config"
	"crossguard/internal/gateway/notifier"
	"crossguard/internal/logger"
	"crossguard/internal/scheduler"
	livehttp "crossguard/internal/transport/http/live"
)

func buildLiveHTTPServer(cfg config.AppConfig, sc livehttp.ServerConfig) (*livehttp.Server, error) {
	sc.Addr = cfg.HTTPAddr
	server, err := livehttp.NewServer(sc)
	if err != nil {
		return nil, fmt.Errorf("初始化 live HTTP 失败: %w", err)
	}
	logger.Infof("✓ Live HTTP 接口监听 %s", server.Addr())
	return server, nil
}

func newNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

// decisionScheduler: close 模式每根 K 线收盘后执行一次；poll 模式首次对齐收盘，之后按 decision_interval 轮询。
func decisionScheduler(cfg *config.Config) scheduler.Runner {
	bar, _ := scheduler.ParseIntervalDuration(cfg.Strategy.Timeframe)
	sc := cfg.Scheduler
	if sc.PollMode() {
		s := scheduler.NewPollScheduler("decision", bar, sc.DecisionInterval(), sc.Offset())
		s.RunImmediately = sc.RunImmediately
		return s
	}
	s := scheduler.NewAlignedScheduler("decision", bar, sc.Offset())
	s.RunImmediately = sc.RunImmediately
	return s
}

func snapshotScheduler(cfg *config.Config) scheduler.Runner {
	s := scheduler.NewAlignedScheduler("snapshot", cfg.Scheduler.SnapshotInterval(), 0)
	s.RunImmediately = true
	return s
}

package app

import (
	"context"
	"fmt"
	"time"

	"crossguard/internal/config"
	"crossguard/internal/execution"
	"crossguard/internal/gateway/notifier"
	"crossguard/internal/logger"
	"crossguard/internal/scheduler"
	"crossguard/internal/snapshot"
	"crossguard/internal/store/sqlite"
	livehttp "crossguard/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：账本自检→恢复挂起意图→决策循环、快照循环与 dashboard。
type App struct {
	cfg       *config.Config
	symbols   []string
	ledger    *sqlite.SqliteStore
	gov       *execution.Governor
	recorder  *snapshot.Recorder
	liveHTTP  *livehttp.Server
	watcher   *config.Watcher
	alerts    *notifier.Queue
	decision  scheduler.Runner
	snapshots scheduler.Runner
	Summary   *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 在 ctx 取消前一直运行；账本不可写或恢复失败时拒绝交易。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.gov == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	pingCtx, cancel := context.WithTimeout(ctx, a.cfg.Execution.CallTimeout())
	err := a.ledger.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("账本不可用，拒绝交易: %w", err)
	}
	if err := a.gov.Recover(ctx, a.symbols); err != nil {
		return fmt.Errorf("启动恢复失败: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(gctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		a.decision.Run(gctx, a.runCycles)
		return nil
	})
	group.Go(func() error {
		a.snapshots.Run(gctx, a.recordSnapshot)
		return nil
	})

	err = group.Wait()
	if derr := a.gov.Drain(a.cfg.Execution.ShutdownGrace()); derr != nil {
		logger.Errorf("停止时仍有未完成意图: %v", derr)
	}
	return err
}

func (a *App) runCycles(ctx context.Context) {
	start := time.Now()
	outs := a.gov.RunCycles(ctx, a.symbols)
	acted := 0
	for _, o := range outs {
		if o.Intent != nil {
			acted++
		}
	}
	logger.Infof("决策周期完成: symbols=%d actions=%d dur=%s", len(outs), acted, time.Since(start).Truncate(time.Millisecond))
}

func (a *App) recordSnapshot(ctx context.Context) {
	if err := a.recorder.Record(ctx); err != nil {
		logger.Warnf("快照写入失败: %v", err)
	}
}

func (a *App) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if err := a.alerts.Close(5 * time.Second); err != nil {
		logger.Warnf("通知队列未清空: %v", err)
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			logger.Warnf("关闭账本失败: %v", err)
		}
	}
}

// Governor exposes the execution governor (for tests and tooling).
func (a *App) Governor() *execution.Governor {
	if a == nil {
		return nil
	}
	return a.gov
}

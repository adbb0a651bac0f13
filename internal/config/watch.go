package config

import (
	"fmt"
	"strings"
	"sync"

	"crossguard/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RiskListener receives a validated risk section after the file changes.
type RiskListener func(RiskConfig)

// Watcher 监听主配置文件，只热更新 risk 段；其余字段需要重启生效。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	risk      RiskConfig
	listeners []RiskListener
}

func Watch(path string, initial RiskConfig) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	w := &Watcher{path: path, v: v, risk: initial}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		w.notify()
	})
	v.WatchConfig()
	return w, nil
}

// Risk returns the current risk section.
func (w *Watcher) Risk() RiskConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.risk
}

func (w *Watcher) Subscribe(fn RiskListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) reload() error {
	merged, err := readMerged(w.path)
	if err != nil {
		return err
	}
	var cfg Config
	if err := decode(merged, &cfg); err != nil {
		return err
	}
	keys := make(keySet)
	collectSettingsKeys(merged.AllSettings(), keys)
	cfg.Risk.applyDefaults(keys)
	if err := cfg.Risk.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	changed := cfg.Risk != w.risk
	w.risk = cfg.Risk
	w.mu.Unlock()
	if changed {
		logger.Infof("risk config reloaded: stop_loss=%.4f take_profit=%.4f max_positions=%d daily_loss_limit=%.2f",
			cfg.Risk.StopLossPct, cfg.Risk.TakeProfitPct, cfg.Risk.MaxPositions, cfg.Risk.DailyLossLimit)
	}
	return nil
}

func (w *Watcher) notify() {
	w.mu.RLock()
	risk := w.risk
	listeners := append([]RiskListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		func(cb RiskListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("risk listener panic: %v", r)
				}
			}()
			cb(risk)
		}(fn)
	}
}

// Close drops all listeners; viper offers no way to stop its fsnotify goroutine.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.listeners = nil
	w.mu.Unlock()
}

package execution

import (
	"context"
	"fmt"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/logger"
)

// Recover runs before any decision cycle: sync the clock, set leverage,
// resolve intents left PENDING by a previous run through status queries, then reconcile.
// A pending intent is never resubmitted.
func (g *Governor) Recover(ctx context.Context, symbols []string) error {
	g.maybeResyncClock(ctx)
	if setter, ok := g.gw.(exchange.LeverageSetter); ok {
		for _, sym := range symbols {
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
			err := setter.SetLeverage(callCtx, normSymbol(sym), g.cfg.Leverage)
			cancel()
			if err != nil {
				logger.Warnf("设置杠杆失败 %s x%d: %v", sym, g.cfg.Leverage, err)
			}
		}
	}

	pending, err := g.ledger.PendingIntents(ctx)
	if err != nil {
		return fmt.Errorf("load pending intents: %w", err)
	}
	for _, intent := range pending {
		if err := g.reserve(intent); err != nil {
			return err
		}
		resolved, err := g.drive(ctx, intent, g.orderRequest(intent), false)
		g.release(intent.Symbol)
		if err != nil {
			return fmt.Errorf("resolve intent %s: %w", intent.ID, err)
		}
		if !resolved.State.Terminal() {
			return fmt.Errorf("intent %s still %s after recovery", resolved.ID, resolved.State)
		}
		logger.Infof("恢复挂起意图 %s %s %s -> %s", resolved.ID, resolved.Symbol, resolved.Action, resolved.State)
	}

	for _, sym := range symbols {
		if _, err := g.Sync(ctx, sym); err != nil {
			logger.Warnf("启动对账失败 %s: %v", sym, err)
		}
	}
	return nil
}

// Drain stops new intents and waits for in-flight ones to reach a terminal state.
func (g *Governor) Drain(timeout time.Duration) error {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()
	if timeout <= 0 {
		timeout = g.cfg.ShutdownGrace
	}
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("drain: %d intents still in flight after %s", len(g.InFlight()), timeout)
	}
}

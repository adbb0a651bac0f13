// Package snapshot periodically writes balance and position snapshots to the ledger
// and pulls funding fee income into the fund flow log. It never places orders.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/logger"
	"crossguard/internal/reconcile"
	"crossguard/internal/store"
	"crossguard/internal/types"
)

// Ledger is the part of the ledger the recorder appends to.
type Ledger interface {
	AppendSnapshot(ctx context.Context, kind string, payload any, ts time.Time) error
	AppendFundFlow(ctx context.Context, rec types.FundFlowRecord) error
	QueryFundFlows(ctx context.Context, filter store.FlowFilter) ([]types.FundFlowRecord, error)
}

// FundingSource reports settled funding fees; live gateways implement it.
type FundingSource interface {
	FundingFees(ctx context.Context, since time.Time) ([]types.FundFlowRecord, error)
}

// Positions is the payload of a positions snapshot.
type Positions struct {
	Positions     []types.Position `json:"positions"`
	UnrealizedPnL float64          `json:"unrealized_pnl"`
}

type Recorder struct {
	ledger  Ledger
	gw      exchange.Gateway
	tracker *reconcile.Tracker
	funding FundingSource
	timeout time.Duration

	fundingSince time.Time
	now          func() time.Time
}

func NewRecorder(ledger Ledger, gw exchange.Gateway, tracker *reconcile.Tracker, funding FundingSource, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Recorder{
		ledger:  ledger,
		gw:      gw,
		tracker: tracker,
		funding: funding,
		timeout: timeout,
		now:     time.Now,
	}
}

// Record writes one balance and one positions snapshot, then ingests funding fees.
// Called from a single loop goroutine.
func (r *Recorder) Record(ctx context.Context) error {
	ts := r.now().UTC()
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	bal, err := r.gw.GetBalance(callCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("snapshot balance: %w", err)
	}
	if err := r.append(ctx, store.SnapshotBalance, bal, ts); err != nil {
		return err
	}

	payload := Positions{Positions: r.tracker.All()}
	marks := make(map[string]float64)
	for i := range payload.Positions {
		p := &payload.Positions[i]
		mark, ok := marks[p.Symbol]
		if !ok {
			mctx, mcancel := context.WithTimeout(ctx, r.timeout)
			mark, err = r.gw.GetMarkPrice(mctx, p.Symbol)
			mcancel()
			if err != nil {
				logger.Warnf("snapshot mark price %s: %v", p.Symbol, err)
				mark = p.MarkPrice
			}
			marks[p.Symbol] = mark
		}
		if mark > 0 {
			p.MarkPrice = mark
		}
		payload.UnrealizedPnL += p.UnrealizedPnL(p.MarkPrice)
	}
	if err := r.append(ctx, store.SnapshotPositions, payload, ts); err != nil {
		return err
	}

	if r.funding != nil {
		if err := r.ingestFunding(ctx, bal); err != nil {
			logger.Warnf("资金费率流水同步失败: %v", err)
		}
	}
	return nil
}

func (r *Recorder) append(ctx context.Context, kind string, payload any, ts time.Time) error {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.ledger.AppendSnapshot(callCtx, kind, payload, ts); err != nil {
		return fmt.Errorf("append %s snapshot: %w", kind, err)
	}
	return nil
}

// ingestFunding resumes from the newest stored funding flow; appends are idempotent on the flow id.
func (r *Recorder) ingestFunding(ctx context.Context, bal types.Balance) error {
	if r.fundingSince.IsZero() {
		r.fundingSince = r.now().UTC().Add(-24 * time.Hour)
		qctx, qcancel := context.WithTimeout(ctx, r.timeout)
		last, err := r.ledger.QueryFundFlows(qctx, store.FlowFilter{Type: types.FlowFundingFee, Limit: 1})
		qcancel()
		if err == nil && len(last) > 0 {
			r.fundingSince = last[0].Timestamp
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	flows, err := r.funding.FundingFees(callCtx, r.fundingSince)
	cancel()
	if err != nil {
		return err
	}
	for _, f := range flows {
		if f.Balance == 0 {
			f.Balance = bal.Total
		}
		actx, acancel := context.WithTimeout(ctx, r.timeout)
		err := r.ledger.AppendFundFlow(actx, f)
		acancel()
		if err != nil {
			return fmt.Errorf("append funding flow %s: %w", f.ID, err)
		}
		if f.Timestamp.After(r.fundingSince) {
			r.fundingSince = f.Timestamp
		}
	}
	if len(flows) > 0 {
		logger.Infof("同步资金费 %d 条", len(flows))
	}
	return nil
}

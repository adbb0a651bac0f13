package reconcile

import (
	"math"
	"sort"
	"strings"
	"time"

	"crossguard/internal/types"

	"github.com/google/uuid"
)

// Leveler derives stop-loss/take-profit for a position adopted from the exchange.
type Leveler func(side types.Side, entry float64) (stop, take float64)

const sizeEpsilon = 1e-9

// Reconciler 以交易所持仓为准修正本地认知，并产出漂移事件。
type Reconciler struct {
	levels Leveler
	hedge  bool
	now    func() time.Time
}

func New(levels Leveler, hedge bool) *Reconciler {
	return &Reconciler{levels: levels, hedge: hedge, now: time.Now}
}

// Reconcile merges local belief with remote truth.
// Remote wins for size, entry and mark; local keeps stop/take and open time on the same side.
func (r *Reconciler) Reconcile(local, remote []types.Position) ([]types.Position, []types.DriftEvent) {
	now := r.now().UTC()
	localByKey := make(map[string]types.Position, len(local))
	for _, pos := range local {
		localByKey[r.key(pos)] = pos
	}
	var (
		corrected []types.Position
		drifts    []types.DriftEvent
		seen      = make(map[string]bool, len(remote))
	)
	for _, rp := range remote {
		if rp.Size <= 0 || !rp.Side.Valid() {
			continue
		}
		k := r.key(rp)
		seen[k] = true
		lp, ok := localByKey[k]
		switch {
		case !ok:
			corrected = append(corrected, r.adopt(rp, now))
			drifts = append(drifts, drift(types.DriftMissingLocally, rp.Symbol, rp.Side, 0, rp, now))
		case lp.Side != rp.Side:
			drifts = append(drifts, drift(types.DriftMissingRemotely, lp.Symbol, lp.Side, lp.Size, types.Position{}, now))
			corrected = append(corrected, r.adopt(rp, now))
			drifts = append(drifts, drift(types.DriftMissingLocally, rp.Symbol, rp.Side, 0, rp, now))
		default:
			merged := merge(lp, rp)
			if merged.StopLoss == 0 && merged.TakeProfit == 0 && r.levels != nil {
				merged.StopLoss, merged.TakeProfit = r.levels(merged.Side, merged.EntryPrice)
			}
			corrected = append(corrected, merged)
			if !sameSize(lp.Size, rp.Size) {
				drifts = append(drifts, drift(types.DriftSizeMismatch, rp.Symbol, rp.Side, lp.Size, rp, now))
			}
		}
	}
	for _, lp := range local {
		if seen[r.key(lp)] {
			continue
		}
		drifts = append(drifts, drift(types.DriftMissingRemotely, lp.Symbol, lp.Side, lp.Size, types.Position{}, now))
	}
	sort.Slice(corrected, func(i, j int) bool { return r.key(corrected[i]) < r.key(corrected[j]) })
	return corrected, drifts
}

func (r *Reconciler) key(p types.Position) string {
	return strings.ToUpper(p.Key(r.hedge))
}

func (r *Reconciler) adopt(rp types.Position, now time.Time) types.Position {
	out := rp
	if out.OpenedAt.IsZero() {
		out.OpenedAt = now
	}
	if r.levels != nil {
		out.StopLoss, out.TakeProfit = r.levels(out.Side, out.EntryPrice)
	}
	return out
}

func merge(lp, rp types.Position) types.Position {
	out := rp
	out.StopLoss = lp.StopLoss
	out.TakeProfit = lp.TakeProfit
	if !lp.OpenedAt.IsZero() {
		out.OpenedAt = lp.OpenedAt
	}
	if out.Leverage == 0 {
		out.Leverage = lp.Leverage
	}
	if out.ExchangeID == "" {
		out.ExchangeID = lp.ExchangeID
	}
	return out
}

func sameSize(a, b float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return math.Abs(a-b) <= sizeEpsilon*scale
}

func drift(kind types.DriftKind, symbol string, side types.Side, localSize float64, rp types.Position, now time.Time) types.DriftEvent {
	return types.DriftEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		Symbol:      symbol,
		Side:        side,
		LocalSize:   localSize,
		RemoteSize:  rp.Size,
		RemoteEntry: rp.EntryPrice,
		DetectedAt:  now,
	}
}

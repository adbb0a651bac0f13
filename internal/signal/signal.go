package signal

import (
	"fmt"

	"crossguard/internal/types"

	talib "github.com/markcheno/go-talib"
)

// Kind 是信号评估的输出。
type Kind string

const (
	None       Kind = "NONE"
	LongEntry  Kind = "LONG_ENTRY"
	ShortEntry Kind = "SHORT_ENTRY"
	LongExit   Kind = "LONG_EXIT"
	ShortExit  Kind = "SHORT_EXIT"
)

// IsEntry reports whether the signal opens a position.
func (k Kind) IsEntry() bool { return k == LongEntry || k == ShortEntry }

// IsExit reports whether the signal closes a position.
func (k Kind) IsExit() bool { return k == LongExit || k == ShortExit }

// EntrySide returns the side an entry signal opens.
func (k Kind) EntrySide() types.Side {
	switch k {
	case LongEntry:
		return types.SideLong
	case ShortEntry:
		return types.SideShort
	default:
		return ""
	}
}

// Params EMA/MA 周期。
type Params struct {
	EMAPeriod int
	MAPeriod  int
}

func (p Params) Validate() error {
	if p.EMAPeriod <= 0 || p.MAPeriod <= 0 {
		return fmt.Errorf("signal: periods must be > 0 (ema=%d ma=%d)", p.EMAPeriod, p.MAPeriod)
	}
	return nil
}

// MinBars is the shortest close series Evaluate will act on.
func (p Params) MinBars() int {
	n := p.EMAPeriod
	if p.MAPeriod > n {
		n = p.MAPeriod
	}
	return n + 2
}

// Snapshot 最新两根 K 线上的指标读数。
type Snapshot struct {
	Ready     bool    `json:"ready"`
	Close     float64 `json:"close"`
	EMA       float64 `json:"ema"`
	PrevEMA   float64 `json:"prev_ema"`
	MA        float64 `json:"ma"`
	Diff      float64 `json:"diff"`
	PrevDiff  float64 `json:"prev_diff"`
	CrossUp   bool    `json:"cross_up"`
	CrossDown bool    `json:"cross_down"`
}

// Rising reports whether the EMA increased over the last bar.
func (s Snapshot) Rising() bool { return s.EMA > s.PrevEMA }

// Falling reports whether the EMA decreased over the last bar.
func (s Snapshot) Falling() bool { return s.EMA < s.PrevEMA }

// Evaluator is a pure function of the close series; it holds only periods.
type Evaluator struct {
	params Params
}

func New(params Params) *Evaluator {
	return &Evaluator{params: params}
}

func (e *Evaluator) Params() Params { return e.params }

// Inspect computes the indicator snapshot for the latest closed bar.
func (e *Evaluator) Inspect(closes []float64) Snapshot {
	if e.params.Validate() != nil || len(closes) < e.params.MinBars() {
		return Snapshot{}
	}
	emaSeries := EMA(closes, e.params.EMAPeriod)
	maSeries := talib.Sma(closes, e.params.MAPeriod)
	last := len(closes) - 1
	snap := Snapshot{
		Ready:    true,
		Close:    closes[last],
		EMA:      emaSeries[last],
		PrevEMA:  emaSeries[last-1],
		MA:       maSeries[last],
		Diff:     emaSeries[last] - maSeries[last],
		PrevDiff: emaSeries[last-1] - maSeries[last-1],
	}
	snap.CrossUp = snap.PrevDiff <= 0 && snap.Diff > 0
	snap.CrossDown = snap.PrevDiff >= 0 && snap.Diff < 0
	return snap
}

// EMA 从首根收盘价起算的指数均线，k = 2/(n+1)，不做 SMA 预热。
// 序列短于 n 时同样有值，与 pandas ewm(adjust=False) 一致。
func EMA(closes []float64, n int) []float64 {
	if len(closes) == 0 || n <= 0 {
		return nil
	}
	k := 2 / float64(n+1)
	out := make([]float64, len(closes))
	out[0] = closes[0]
	for i := 1; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Evaluate 返回最新 K 线上的信号；held 为当前持仓方向（nil 表示空仓）。
// 持仓时先判断离场，空仓时只判断入场。
func (e *Evaluator) Evaluate(closes []float64, held *types.Side) Kind {
	return Decide(e.Inspect(closes), held)
}

// Decide maps a snapshot to a signal.
func Decide(s Snapshot, held *types.Side) Kind {
	if !s.Ready {
		return None
	}
	if held != nil {
		switch *held {
		case types.SideLong:
			if s.CrossDown || s.Close < s.EMA {
				return LongExit
			}
		case types.SideShort:
			if s.CrossUp || s.Close > s.EMA {
				return ShortExit
			}
		}
	}
	if s.CrossUp && s.Close > s.EMA && s.EMA > s.MA && s.Rising() {
		return LongEntry
	}
	if s.CrossDown && s.Close < s.EMA && s.EMA < s.MA && s.Falling() {
		return ShortEntry
	}
	return None
}

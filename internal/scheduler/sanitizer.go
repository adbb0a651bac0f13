package scheduler

import (
	"time"

	"crossguard/internal/market"
)

// KlineCloseGrace: a bar is only treated as closed this long after its close time,
// so a late final trade cannot still move the close we evaluate.
const KlineCloseGrace = 10 * time.Second

// DropUnclosed trims trailing bars that are still forming at now.
// now should come from the exchange clock; a fast local clock would otherwise let a forming bar through.
func DropUnclosed(klines []market.Candle, interval time.Duration, now time.Time) []market.Candle {
	if interval <= 0 {
		return klines
	}
	cutoff := now.UnixMilli()
	for len(klines) > 0 {
		if closeMillis(klines[len(klines)-1], interval)+KlineCloseGrace.Milliseconds() <= cutoff {
			break
		}
		klines = klines[:len(klines)-1]
	}
	return klines
}

// closeMillis prefers the exchange-reported close time (open + interval - 1ms on Binance).
func closeMillis(c market.Candle, interval time.Duration) int64 {
	if c.CloseTime > 0 {
		return c.CloseTime + 1
	}
	return c.OpenTime + interval.Milliseconds()
}

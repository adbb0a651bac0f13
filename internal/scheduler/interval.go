package scheduler

import (
	"strings"
	"time"
)

// binanceIntervals 是 USDT-M 合约支持的 K 线周期；月线 (1M) 没有固定时长，不支持。
var binanceIntervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// ParseIntervalDuration maps a Binance kline interval ("15m", "4h", "1d") to its bar length.
// Hours, days and weeks are accepted in either case; anything Binance would reject returns false.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.TrimSpace(interval)
	if interval == "" || strings.HasSuffix(interval, "M") {
		return 0, false
	}
	d, ok := binanceIntervals[strings.ToLower(interval)]
	return d, ok
}

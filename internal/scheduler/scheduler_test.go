package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"crossguard/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestAlignedNextTimes(t *testing.T) {
	s := NewAlignedScheduler("test", 15*time.Minute, 5*time.Second)
	now := time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC)
	nextClose, wakeAt, untilClose, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC), nextClose)
	assert.Equal(t, nextClose.Add(5*time.Second), wakeAt)
	assert.Equal(t, 7*time.Minute+30*time.Second, untilClose)
	assert.Equal(t, untilClose+5*time.Second, wait)
}

func TestNextFixedTimeAfter(t *testing.T) {
	anchor := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, anchor, nextFixedTimeAfter(anchor, time.Minute, anchor.Add(-time.Second)))
	assert.Equal(t, anchor.Add(time.Minute), nextFixedTimeAfter(anchor, time.Minute, anchor))
	assert.Equal(t, anchor.Add(3*time.Minute), nextFixedTimeAfter(anchor, time.Minute, anchor.Add(150*time.Second)))
}

func TestRunImmediatelyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	s := NewAlignedScheduler("test", time.Hour, 0)
	s.RunImmediately = true
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context) {
			runs.Add(1)
			cancel()
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Equal(t, int32(1), runs.Load())
}

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{"15m": 15 * time.Minute, "1H": time.Hour, "1d": 24 * time.Hour, "1w": 7 * 24 * time.Hour}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "m", "0m", "5x", "-1h", "7m", "2d", "1M"} {
		_, ok := ParseIntervalDuration(bad)
		assert.False(t, ok, bad)
	}
}

func TestDropUnclosedKline(t *testing.T) {
	interval := 15 * time.Minute
	open := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ks := []market.Candle{
		{OpenTime: open.Add(-interval).UnixMilli(), Close: 1},
		{OpenTime: open.UnixMilli(), Close: 2},
	}
	forming := DropUnclosed(ks, interval, open.Add(5*time.Minute))
	assert.Len(t, forming, 1)
	inGrace := DropUnclosed(ks, interval, open.Add(interval+5*time.Second))
	assert.Len(t, inGrace, 1)
	closed := DropUnclosed(ks, interval, open.Add(interval+11*time.Second))
	assert.Len(t, closed, 2)
}

func TestDropUnclosedUsesReportedCloseTime(t *testing.T) {
	interval := 15 * time.Minute
	open := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	closeAt := open.Add(interval)
	ks := []market.Candle{
		{OpenTime: open.Add(-interval).UnixMilli(), CloseTime: open.UnixMilli() - 1},
		{OpenTime: open.UnixMilli(), CloseTime: closeAt.UnixMilli() - 1},
	}
	assert.Len(t, DropUnclosed(ks, interval, closeAt.Add(KlineCloseGrace)), 2)
	assert.Len(t, DropUnclosed(ks, interval, closeAt.Add(KlineCloseGrace-time.Millisecond)), 1)
	// a clock behind by a whole bar drops both
	assert.Empty(t, DropUnclosed(ks, interval, open.Add(-time.Minute)))
	assert.Len(t, DropUnclosed(ks, 0, open), 2)
}

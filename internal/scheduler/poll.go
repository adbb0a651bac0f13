package scheduler

import (
	"context"
	"time"

	"crossguard/internal/logger"
)

// PollScheduler aligns its first run to the next AlignInterval boundary plus Offset,
// then polls every Interval from that anchor.
type PollScheduler struct {
	Name           string
	AlignInterval  time.Duration
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewPollScheduler(name string, alignInterval, interval, offset time.Duration) *PollScheduler {
	return &PollScheduler{
		Name:          name,
		AlignInterval: alignInterval,
		Interval:      interval,
		Offset:        offset,
		nowFn:         time.Now,
	}
}

func (s *PollScheduler) prefix() string {
	if s.Name == "" {
		return "PollScheduler"
	}
	return "PollScheduler[" + s.Name + "]"
}

func (s *PollScheduler) Run(ctx context.Context, task Task) {
	if s == nil || task == nil {
		return
	}
	if s.AlignInterval <= 0 || s.Interval <= 0 {
		logger.Warnf("%s: invalid align_interval=%s interval=%s, exit", s.prefix(), s.AlignInterval, s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	startAt := s.nowFn().UTC()
	logger.Infof("%s: started align_interval=%s interval=%s offset=%s run_immediately=%v",
		s.prefix(), s.AlignInterval, s.Interval, s.Offset, s.RunImmediately)

	if s.RunImmediately {
		task(ctx)
	}
	now := s.nowFn().UTC()
	firstAt := now.Truncate(s.AlignInterval).Add(s.AlignInterval).Add(s.Offset)
	logger.Infof("%s: 第一次执行=%s (in %s)", s.prefix(), firstAt.Format(time.RFC3339), firstAt.Sub(now).Truncate(time.Second))
	if !waitFor(ctx, firstAt.Sub(now)) {
		return
	}
	task(ctx)

	anchor := firstAt
	for {
		now := s.nowFn().UTC()
		nextAt := nextFixedTimeAfter(anchor, s.Interval, now)
		logger.Debugf("%s: 下次执行=%s | uptime=%s", s.prefix(), nextAt.Format(time.RFC3339), now.Sub(startAt).Truncate(time.Second))
		if !waitFor(ctx, nextAt.Sub(now)) {
			logger.Infof("%s: ctx done, exit", s.prefix())
			return
		}
		task(ctx)
	}
}

func nextFixedTimeAfter(anchor time.Time, interval time.Duration, now time.Time) time.Time {
	anchor = anchor.UTC()
	now = now.UTC()
	if interval <= 0 {
		return now
	}
	delta := now.Sub(anchor)
	if delta < 0 {
		return anchor
	}
	k := delta / interval
	return anchor.Add((k + 1) * interval)
}

package scheduler

import (
	"context"
	"time"

	"crossguard/internal/logger"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context)

// Runner blocks running task until ctx is done.
type Runner interface {
	Run(ctx context.Context, task Task)
}

// AlignedScheduler runs the task at every interval boundary (UTC) plus Offset,
// e.g. right after each kline close.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(name string, interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

func (s *AlignedScheduler) prefix() string {
	if s.Name == "" {
		return "AlignedScheduler"
	}
	return "AlignedScheduler[" + s.Name + "]"
}

func (s *AlignedScheduler) Run(ctx context.Context, task Task) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", s.prefix(), s.Interval)
		return
	}
	if s.Offset < 0 {
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	startAt := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s offset=%s run_immediately=%v at=%s",
		s.prefix(), s.Interval, s.Offset, s.RunImmediately, startAt.Format(time.RFC3339))

	if s.RunImmediately {
		task(ctx)
	}
	for {
		now := s.nowFn().UTC()
		nextClose, wakeAt, _, wait := s.nextTimes(now)
		logger.Debugf("%s: 距离收盘=%s 下一次执行=%s | uptime=%s",
			s.prefix(), nextClose.Sub(now).Truncate(time.Second), wakeAt.Format(time.RFC3339), now.Sub(startAt).Truncate(time.Second))
		if !waitFor(ctx, wait) {
			logger.Infof("%s: ctx done, exit", s.prefix())
			return
		}
		task(ctx)
	}
}

func (s *AlignedScheduler) nextTimes(now time.Time) (nextClose time.Time, wakeAt time.Time, untilClose time.Duration, wait time.Duration) {
	now = now.UTC()
	nextClose = now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = nextClose.Add(s.Offset)
	untilClose = nextClose.Sub(now)
	wait = wakeAt.Sub(now)
	return nextClose, wakeAt, untilClose, wait
}

// waitFor sleeps d unless ctx ends first; a non-positive d still honours a done ctx.
func waitFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

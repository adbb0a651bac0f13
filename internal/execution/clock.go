package execution

import (
	"context"
	"sync"
	"time"
)

// ServerClock tracks the offset between local time and exchange server time.
// Trading-day boundaries are computed from Now().
type ServerClock struct {
	mu       sync.RWMutex
	offset   time.Duration
	syncedAt time.Time
	local    func() time.Time
}

func NewServerClock() *ServerClock {
	return &ServerClock{local: time.Now}
}

func (c *ServerClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.local().Add(c.offset).UTC()
}

func (c *ServerClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Stale reports whether the offset is older than maxAge.
func (c *ServerClock) Stale(maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.syncedAt.IsZero() || c.local().Sub(c.syncedAt) > maxAge
}

// Sync measures the offset with a midpoint estimate of the round trip.
func (c *ServerClock) Sync(ctx context.Context, serverTime func(context.Context) (time.Time, error)) error {
	before := c.local()
	st, err := serverTime(ctx)
	if err != nil {
		return err
	}
	after := c.local()
	mid := before.Add(after.Sub(before) / 2)
	c.mu.Lock()
	c.offset = st.Sub(mid)
	c.syncedAt = after
	c.mu.Unlock()
	return nil
}

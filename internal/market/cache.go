package market

import (
	"context"
	"errors"
	"sync"
)

// Cache keeps the latest closed candles per symbol@interval for read-only consumers.
type Cache struct {
	shards []cacheShard
}

type cacheShard struct {
	mu   sync.RWMutex
	data map[string][]Candle
}

const defaultShardCount = 16

func NewCache() *Cache {
	return newCache(defaultShardCount)
}

func newCache(shards int) *Cache {
	if shards <= 0 {
		shards = 1
	}
	out := &Cache{shards: make([]cacheShard, shards)}
	for i := range out.shards {
		out.shards[i] = cacheShard{data: make(map[string][]Candle)}
	}
	return out
}

func (c *Cache) shardFor(key string) *cacheShard {
	return &c.shards[hashKey(key)%uint32(len(c.shards))]
}

func cacheKey(symbol, interval string) string { return symbol + "@" + interval }

// Set replaces the series.
func (c *Cache) Set(ctx context.Context, symbol, interval string, ks []Candle) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	k := cacheKey(symbol, interval)
	sh := c.shardFor(k)
	dst := make([]Candle, len(ks))
	copy(dst, ks)
	sh.mu.Lock()
	sh.data[k] = dst
	sh.mu.Unlock()
	return nil
}

// Put merges candles by open time, keeping at most max entries.
func (c *Cache) Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error {
	if symbol == "" || interval == "" {
		return errors.New("symbol/interval 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 100
	}
	k := cacheKey(symbol, interval)
	sh := c.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur := sh.data[k]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	sh.data[k] = cur
	return nil
}

// Get returns a copy of the last limit candles (all when limit <= 0).
func (c *Cache) Get(ctx context.Context, symbol, interval string, limit int) []Candle {
	k := cacheKey(symbol, interval)
	sh := c.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	cur := sh.data[k]
	if limit > 0 && limit < len(cur) {
		cur = cur[len(cur)-limit:]
	}
	out := make([]Candle, len(cur))
	copy(out, cur)
	return out
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

package reconcile

import (
	"sort"
	"strings"
	"sync"
	"time"

	"crossguard/internal/types"
)

type book struct {
	positions []types.Position
	lastSync  time.Time
}

// Tracker holds the local position book per symbol. It is a cache rebuilt from the exchange.
type Tracker struct {
	mu    sync.RWMutex
	rec   *Reconciler
	books map[string]book
}

func NewTracker(rec *Reconciler) *Tracker {
	return &Tracker{rec: rec, books: make(map[string]book)}
}

func norm(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// Sync reconciles the symbol's book against remote positions and stamps LastSync.
func (t *Tracker) Sync(symbol string, remote []types.Position, at time.Time) ([]types.Position, []types.DriftEvent) {
	symbol = norm(symbol)
	t.mu.Lock()
	defer t.mu.Unlock()
	local := t.books[symbol].positions
	corrected, drifts := t.rec.Reconcile(local, filterSymbol(remote, symbol))
	t.books[symbol] = book{positions: corrected, lastSync: at}
	return clonePositions(corrected), drifts
}

// Record stores a position the governor has just seen confirmed.
func (t *Tracker) Record(pos types.Position) {
	symbol := norm(pos.Symbol)
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.books[symbol]
	key := t.rec.key(pos)
	out := make([]types.Position, 0, len(b.positions)+1)
	for _, p := range b.positions {
		if t.rec.key(p) != key {
			out = append(out, p)
		}
	}
	b.positions = append(out, pos)
	t.books[symbol] = b
}

// Drop removes the symbol/side slot after a confirmed close.
func (t *Tracker) Drop(symbol string, side types.Side) {
	symbol = norm(symbol)
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.books[symbol]
	out := b.positions[:0:0]
	for _, p := range b.positions {
		if p.Side != side {
			out = append(out, p)
		}
	}
	b.positions = out
	t.books[symbol] = b
}

// Reduce shrinks a slot after a partial close; a non-positive remainder drops it.
func (t *Tracker) Reduce(symbol string, side types.Side, qty float64) {
	symbol = norm(symbol)
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.books[symbol]
	out := b.positions[:0:0]
	for _, p := range b.positions {
		if p.Side == side {
			p.Size -= qty
			if p.Size <= sizeEpsilon {
				continue
			}
		}
		out = append(out, p)
	}
	b.positions = out
	t.books[symbol] = b
}

func (t *Tracker) Positions(symbol string) []types.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clonePositions(t.books[norm(symbol)].positions)
}

// Held returns the open position for symbol in net mode, if any.
func (t *Tracker) Held(symbol string) (types.Position, bool) {
	ps := t.Positions(symbol)
	if len(ps) == 0 {
		return types.Position{}, false
	}
	return ps[0], true
}

// All returns every tracked position ordered by symbol.
func (t *Tracker) All() []types.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []types.Position
	for _, b := range t.books {
		out = append(out, b.positions...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol == out[j].Symbol {
			return out[i].Side < out[j].Side
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (t *Tracker) LastSync(symbol string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.books[norm(symbol)].lastSync
}

// Fresh reports whether the symbol was synced within maxAge of now.
func (t *Tracker) Fresh(symbol string, maxAge time.Duration, now time.Time) bool {
	last := t.LastSync(symbol)
	if last.IsZero() {
		return false
	}
	if maxAge <= 0 {
		return true
	}
	return now.Sub(last) <= maxAge
}

func filterSymbol(in []types.Position, symbol string) []types.Position {
	out := make([]types.Position, 0, len(in))
	for _, p := range in {
		if norm(p.Symbol) == symbol {
			out = append(out, p)
		}
	}
	return out
}

func clonePositions(in []types.Position) []types.Position {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Position, len(in))
	copy(out, in)
	return out
}

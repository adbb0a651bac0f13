package market

import "context"

type SourceStats struct {
	Requests  int64
	Failures  int64
	LastError string
}

// Source 提供 REST K 线历史。
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	Stats() SourceStats

	Close() error
}

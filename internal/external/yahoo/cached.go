package yahoo

import (
	"context"
	"strings"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/pkg/redis"
)

// CachedClient decorates a MarketDataPort with a Redis cache.
// With Redis disabled every call goes straight to the wrapped port.
type CachedClient struct {
	next      contracts.MarketDataPort
	cache     *redis.Cache
	benchmark string
}

// NewCachedClient wraps next
func NewCachedClient(next contracts.MarketDataPort, cache *redis.Cache, benchmark string) *CachedClient {
	return &CachedClient{next: next, cache: cache, benchmark: strings.ToUpper(benchmark)}
}

func (c *CachedClient) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	return redis.GetOrSet(ctx, c.cache, redis.QuoteKey(symbol), redis.TTLShort, func() (*contracts.Quote, error) {
		return c.next.GetQuote(ctx, symbol)
	})
}

func (c *CachedClient) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	return redis.GetOrSet(ctx, c.cache, redis.FundamentalsKey(symbol), redis.TTLMedium, func() (*contracts.Fundamentals, error) {
		return c.next.GetFundamentals(ctx, symbol)
	})
}

func (c *CachedClient) GetPriceHistory(ctx context.Context, symbol string, q contracts.HistoryQuery) ([]contracts.Bar, error) {
	key := redis.HistoryKey(symbol, contracts.DateKey(q.End), string(q.Period), string(q.Interval))
	return redis.GetOrSet(ctx, c.cache, key, redis.TTLDaily, func() ([]contracts.Bar, error) {
		return c.next.GetPriceHistory(ctx, symbol, q)
	})
}

func (c *CachedClient) GetBenchmarkHistory(ctx context.Context, q contracts.HistoryQuery) ([]contracts.Bar, error) {
	key := redis.HistoryKey(c.benchmark, contracts.DateKey(q.End), string(q.Period), string(q.Interval))
	return redis.GetOrSet(ctx, c.cache, key, redis.TTLDaily, func() ([]contracts.Bar, error) {
		return c.next.GetBenchmarkHistory(ctx, q)
	})
}

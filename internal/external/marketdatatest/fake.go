// Package marketdatatest provides an in-memory contracts.MarketDataPort for tests.
package marketdatatest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// Fake serves canned quotes, fundamentals and history
type Fake struct {
	mu sync.Mutex

	BenchmarkSymbol string
	Quotes          map[string]*contracts.Quote
	Fundamentals    map[string]*contracts.Fundamentals
	History         map[string][]contracts.Bar
	Errors          map[string]error // per-symbol error returned by every call

	calls map[string]int
}

// New creates an empty fake using benchmark as the default index symbol
func New(benchmark string) *Fake {
	return &Fake{
		BenchmarkSymbol: strings.ToUpper(benchmark),
		Quotes:          map[string]*contracts.Quote{},
		Fundamentals:    map[string]*contracts.Fundamentals{},
		History:         map[string][]contracts.Bar{},
		Errors:          map[string]error{},
		calls:           map[string]int{},
	}
}

// Calls returns how many port calls were made for a symbol
func (f *Fake) Calls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ToUpper(symbol)]
}

func (f *Fake) touch(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	symbol = strings.ToUpper(symbol)
	f.calls[symbol]++
	return f.Errors[symbol]
}

func (f *Fake) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	if err := f.touch(symbol); err != nil {
		return nil, err
	}
	q, ok := f.Quotes[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: quote %s", contracts.ErrDataUnavailable, symbol)
	}
	if q == nil {
		// nil entry: a port answering with neither quote nor error
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (f *Fake) GetPriceHistory(ctx context.Context, symbol string, q contracts.HistoryQuery) ([]contracts.Bar, error) {
	if err := f.touch(symbol); err != nil {
		return nil, err
	}
	bars, ok := f.History[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: history %s", contracts.ErrDataUnavailable, symbol)
	}
	return append([]contracts.Bar(nil), bars...), nil
}

func (f *Fake) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	if err := f.touch(symbol); err != nil {
		return nil, err
	}
	fu, ok := f.Fundamentals[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%w: fundamentals %s", contracts.ErrDataUnavailable, symbol)
	}
	cp := *fu
	return &cp, nil
}

func (f *Fake) GetBenchmarkHistory(ctx context.Context, q contracts.HistoryQuery) ([]contracts.Bar, error) {
	return f.GetPriceHistory(ctx, f.BenchmarkSymbol, q)
}

// TrendBars builds n daily bars whose last close is `gainPct` above every earlier close.
// Every period return over the series equals gainPct, so the weighted performance does too.
func TrendBars(n int, gainPct float64) []contracts.Bar {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, n)
	for i := range bars {
		bars[i] = contracts.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   100,
			High:   100,
			Low:    100,
			Close:  100,
			Volume: 1_000_000,
		}
	}
	last := 100 * (1 + gainPct/100)
	bars[n-1].Close = last
	if last > bars[n-1].High {
		bars[n-1].High = last
	}
	if last < bars[n-1].Low {
		bars[n-1].Low = last
	}
	return bars
}

package yahoo

import (
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/shopspring/decimal"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// fetchChart drains a finance-go chart iterator into bars
func fetchChart(p *chart.Params) ([]contracts.Bar, error) {
	iter := chart.Get(p)

	var bars []contracts.Bar
	for iter.Next() {
		if bar, ok := toBar(iter.Bar()); ok {
			bars = append(bars, bar)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// toBar converts decimal OHLC to float64. Bars without a close are dropped.
func toBar(b *finance.ChartBar) (contracts.Bar, bool) {
	if b == nil {
		return contracts.Bar{}, false
	}
	closePrice := toFloat(b.Close)
	if closePrice <= 0 {
		return contracts.Bar{}, false
	}

	return contracts.Bar{
		Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
		Open:   toFloat(b.Open),
		High:   toFloat(b.High),
		Low:    toFloat(b.Low),
		Close:  closePrice,
		Volume: int64(b.Volume),
	}, true
}

// toFloat converts a decimal price to float64
func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

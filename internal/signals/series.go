package signals

import (
	"fmt"
	"math"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// SMA returns the simple moving average of the last n closes
func SMA(bars []contracts.Bar, n int) (float64, error) {
	if n <= 0 || len(bars) < n {
		return 0, fmt.Errorf("%w: SMA%d needs %d bars, have %d", contracts.ErrInsufficientHistory, n, n, len(bars))
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n), nil
}

// AverageVolume returns the mean volume of the last n bars (fewer if short)
func AverageVolume(bars []contracts.Bar, n int) (float64, bool) {
	if len(bars) == 0 || n <= 0 {
		return 0, false
	}
	if len(bars) < n {
		n = len(bars)
	}
	var sum int64
	for _, b := range bars[len(bars)-n:] {
		sum += b.Volume
	}
	return float64(sum) / float64(n), true
}

// HighLow returns the highest high and lowest low over the last n bars
func HighLow(bars []contracts.Bar, n int) (high, low float64, ok bool) {
	if len(bars) == 0 || n <= 0 {
		return 0, 0, false
	}
	if len(bars) < n {
		n = len(bars)
	}
	high, low = math.Inf(-1), math.Inf(1)
	for _, b := range bars[len(bars)-n:] {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high, low, true
}

// Regime is a market classification with its inputs
type Regime struct {
	Condition contracts.MarketCondition
	Close     float64
	SMA50     float64
	SMA200    float64
}

// ClassifyMarket derives the regime from index closes:
// Risk-On when close > SMA50 > SMA200, Risk-Off when close < SMA200, Neutral otherwise.
func ClassifyMarket(bars []contracts.Bar) (Regime, error) {
	sma200, err := SMA(bars, 200)
	if err != nil {
		return Regime{}, err
	}
	sma50, _ := SMA(bars, 50)
	last := bars[len(bars)-1].Close

	r := Regime{Close: last, SMA50: sma50, SMA200: sma200, Condition: contracts.MarketNeutral}
	switch {
	case last > sma50 && sma50 > sma200:
		r.Condition = contracts.MarketRiskOn
	case last < sma200:
		r.Condition = contracts.MarketRiskOff
	}
	return r, nil
}

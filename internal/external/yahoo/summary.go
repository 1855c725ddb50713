package yahoo

import (
	"strings"

	"github.com/guregu/null/v6"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// rawValue is Yahoo's {"raw": x, "fmt": "..."} wrapper; Raw is nil when absent
type rawValue struct {
	Raw *float64 `json:"raw"`
}

// pct converts a fraction (0.25) to percent (25)
func (v rawValue) pct() null.Float {
	if v.Raw == nil {
		return null.Float{}
	}
	return null.FloatFrom(*v.Raw * 100)
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  interface{}          `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	AssetProfile struct {
		Industry string `json:"industry"`
		Sector   string `json:"sector"`
	} `json:"assetProfile"`
	DefaultKeyStatistics struct {
		EarningsQuarterlyGrowth rawValue `json:"earningsQuarterlyGrowth"`
	} `json:"defaultKeyStatistics"`
	FinancialData struct {
		EarningsGrowth rawValue `json:"earningsGrowth"`
	} `json:"financialData"`
	MajorHoldersBreakdown struct {
		InstitutionsPercentHeld rawValue `json:"institutionsPercentHeld"`
	} `json:"majorHoldersBreakdown"`
}

func (r quoteSummaryResult) toFundamentals(symbol string) *contracts.Fundamentals {
	industry := r.AssetProfile.Industry
	if industry == "" {
		industry = r.AssetProfile.Sector
	}
	return &contracts.Fundamentals{
		Symbol:             strings.ToUpper(symbol),
		Industry:           industry,
		QuarterlyEPSGrowth: r.DefaultKeyStatistics.EarningsQuarterlyGrowth.pct(),
		AnnualEPSGrowth:    r.FinancialData.EarningsGrowth.pct(),
		InstitutionalPct:   r.MajorHoldersBreakdown.InstitutionsPercentHeld.pct(),
	}
}

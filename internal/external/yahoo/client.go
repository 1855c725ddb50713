package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/pkg/config"
	"github.com/wonny/canslim-screener/pkg/httputil"
	"github.com/wonny/canslim-screener/pkg/logger"
)

// summaryModules are the quoteSummary modules Fundamentals reads
var summaryModules = []string{
	"assetProfile",
	"defaultKeyStatistics",
	"financialData",
	"majorHoldersBreakdown",
}

// Client implements contracts.MarketDataPort on Yahoo Finance.
// Quotes and bars come from finance-go; fundamentals from the quoteSummary JSON endpoint.
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	summaryURL string
	benchmark  string
	logger     *logger.Logger

	// finance-go entry points, replaceable in tests
	getEquity func(symbol string) (*finance.Equity, error)
	getChart  func(p *chart.Params) ([]contracts.Bar, error)
}

// NewClient creates a Yahoo client. benchmark is the default index symbol.
func NewClient(httpClient *httputil.Client, cfg config.YahooConfig, benchmark string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		summaryURL: strings.TrimRight(cfg.QuoteSummaryURL, "/"),
		benchmark:  strings.ToUpper(benchmark),
		logger:     log.WithComponent("yahoo"),
		getEquity:  equity.Get,
		getChart:   fetchChart,
	}
}

// GetQuote returns the latest quote
func (c *Client) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eq, err := c.getEquity(symbol)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if eq == nil || eq.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%w: quote %s", contracts.ErrDataUnavailable, symbol)
	}
	return toQuote(symbol, eq), nil
}

// GetPriceHistory returns daily or weekly bars ending at q.End, oldest first
func (c *Client) GetPriceHistory(ctx context.Context, symbol string, q contracts.HistoryQuery) ([]contracts.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := q.End
	start := end.AddDate(-q.Period.Years(), 0, 0)
	interval := q.Interval
	if interval == "" {
		interval = contracts.IntervalDaily
	}

	bars, err := c.getChart(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(interval),
	})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: history %s", contracts.ErrDataUnavailable, symbol)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
		"period": string(q.Period),
	}).Debug("Fetched price history")
	return bars, nil
}

// GetBenchmarkHistory returns history for the default index
func (c *Client) GetBenchmarkHistory(ctx context.Context, q contracts.HistoryQuery) ([]contracts.Bar, error) {
	return c.GetPriceHistory(ctx, c.benchmark, q)
}

// GetFundamentals reads EPS growth, institutional ownership and industry.
// A symbol Yahoo has no summary for yields ErrDataUnavailable.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	u := fmt.Sprintf("%s/%s?modules=%s",
		c.summaryURL, url.PathEscape(symbol), strings.Join(summaryModules, ","))

	var resp quoteSummaryResponse
	if err := c.httpClient.GetJSON(ctx, u, &resp); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: fundamentals %s", contracts.ErrDataUnavailable, symbol)
		}
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: fundamentals %s", contracts.ErrDataUnavailable, symbol)
	}
	return resp.QuoteSummary.Result[0].toFundamentals(symbol), nil
}

func toQuote(symbol string, eq *finance.Equity) *contracts.Quote {
	name := eq.ShortName
	if name == "" {
		name = eq.LongName
	}
	return &contracts.Quote{
		Symbol:       strings.ToUpper(symbol),
		Name:         name,
		Price:        eq.RegularMarketPrice,
		DayChangePct: eq.RegularMarketChangePercent,
		Volume:       int64(eq.RegularMarketVolume),
		MarketCap:    float64(eq.MarketCap),
		High52W:      eq.FiftyTwoWeekHigh,
		Low52W:       eq.FiftyTwoWeekLow,
	}
}

package universe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/pkg/httputil"
	"github.com/wonny/canslim-screener/pkg/logger"
	"github.com/wonny/canslim-screener/pkg/redis"
)

// Built-in sources
const (
	SourceSP500     = "sp500"
	SourceNasdaq100 = "nasdaq100"
	SourceAll       = "all" // sp500 ∪ nasdaq100
)

// ErrUnknownSource is returned for a label that is neither an index nor a configured list
var ErrUnknownSource = errors.New("unknown universe source")

// Provider implements contracts.SymbolUniverseProvider.
// Index members are scraped from constituent tables; custom lists come from config.
// ⭐ SSOT: 유니버스(종목 목록) 해석은 여기서만
type Provider struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	pages      map[string]string   // source → constituents page URL
	lists      map[string][]string // source → configured symbols
	logger     *logger.Logger
}

// NewProvider creates a universe provider. cache may use a disabled client.
func NewProvider(httpClient *httputil.Client, cache *redis.Cache, sp500URL, nasdaq100URL string, log *logger.Logger) *Provider {
	return &Provider{
		httpClient: httpClient,
		cache:      cache,
		pages: map[string]string{
			SourceSP500:     sp500URL,
			SourceNasdaq100: nasdaq100URL,
		},
		lists:  map[string][]string{},
		logger: log.WithComponent("universe"),
	}
}

// WithList registers a configured symbol list under name
func (p *Provider) WithList(name string, symbols []string) *Provider {
	p.lists[strings.ToLower(name)] = contracts.NormalizeSymbols(symbols)
	return p
}

// Sources lists every label GetSymbols accepts
func (p *Provider) Sources() []string {
	out := []string{SourceAll}
	for name := range p.pages {
		out = append(out, name)
	}
	for name := range p.lists {
		out = append(out, name)
	}
	sort.Strings(out[1:])
	return out
}

// GetSymbols resolves a source label to symbols
func (p *Provider) GetSymbols(ctx context.Context, source string) ([]string, error) {
	source = strings.ToLower(strings.TrimSpace(source))

	if list, ok := p.lists[source]; ok {
		return append([]string(nil), list...), nil
	}

	if source == SourceAll {
		var all []string
		for _, s := range []string{SourceSP500, SourceNasdaq100} {
			members, err := p.GetSymbols(ctx, s)
			if err != nil {
				return nil, err
			}
			all = append(all, members...)
		}
		return contracts.NormalizeSymbols(all), nil
	}

	pageURL, ok := p.pages[source]
	if !ok || pageURL == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	return redis.GetOrSet(ctx, p.cache, redis.UniverseKey(source), redis.TTLLong, func() ([]string, error) {
		return p.scrape(ctx, source, pageURL)
	})
}

func (p *Provider) scrape(ctx context.Context, source, pageURL string) ([]string, error) {
	resp, err := p.httpClient.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s constituents: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s constituents: %w", source, err)
	}

	symbols := ParseConstituents(doc)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no constituents found for %s", contracts.ErrDataUnavailable, source)
	}

	p.logger.WithFields(map[string]interface{}{
		"source":  source,
		"symbols": len(symbols),
	}).Info("Fetched index constituents")
	return symbols, nil
}

// ParseConstituents reads the ticker column of the page's constituents table.
// The column is located by its "Symbol" or "Ticker" header.
func ParseConstituents(doc *goquery.Document) []string {
	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}

	col := -1
	table.Find("tr").First().Find("th").EachWithBreak(func(i int, th *goquery.Selection) bool {
		h := strings.ToLower(strings.TrimSpace(th.Text()))
		if h == "symbol" || h == "ticker" {
			col = i
			return false
		}
		return true
	})
	if col < 0 {
		return nil
	}

	var symbols []string
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= col {
			return
		}
		sym := strings.TrimSpace(cells.Eq(col).Text())
		if sym == "" {
			return
		}
		// Yahoo 표기: BRK.B → BRK-B
		symbols = append(symbols, strings.ReplaceAll(sym, ".", "-"))
	})
	return contracts.NormalizeSymbols(symbols)
}

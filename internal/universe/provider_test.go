package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/canslim-screener/pkg/httputil"
	"github.com/wonny/canslim-screener/pkg/logger"
	"github.com/wonny/canslim-screener/pkg/redis"
)

const sp500Page = `<html><body>
<table class="wikitable sortable" id="constituents">
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th></tr>
<tr><td><a href="#">AAPL</a></td><td>Apple Inc.</td><td>Information Technology</td></tr>
<tr><td>BRK.B</td><td>Berkshire Hathaway</td><td>Financials</td></tr>
<tr><td>MSFT</td><td>Microsoft</td><td>Information Technology</td></tr>
</table></body></html>`

const nasdaqPage = `<html><body>
<table class="wikitable" id="constituents">
<tr><th>Company</th><th>Ticker</th></tr>
<tr><td>Microsoft</td><td>MSFT</td></tr>
<tr><td>NVIDIA</td><td>NVDA</td></tr>
</table></body></html>`

func newTestProvider(t *testing.T) (*Provider, *int32) {
	t.Helper()
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/sp500", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(sp500Page))
	})
	mux.HandleFunc("/ndx", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(nasdaqPage))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p := NewProvider(
		httputil.New(logger.Nop()).DisableRetry(),
		redis.NewCache(redis.Disabled(), "test"),
		server.URL+"/sp500",
		server.URL+"/ndx",
		logger.Nop(),
	)
	return p, &hits
}

func TestGetSymbols_Index(t *testing.T) {
	p, hits := newTestProvider(t)

	syms, err := p.GetSymbols(context.Background(), "SP500")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B", "MSFT"}, syms)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestGetSymbols_All(t *testing.T) {
	p, _ := newTestProvider(t)

	syms, err := p.GetSymbols(context.Background(), SourceAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B", "MSFT", "NVDA"}, syms)
}

func TestGetSymbols_ConfiguredList(t *testing.T) {
	p, hits := newTestProvider(t)
	p.WithList("Watchlist", []string{"tsla", " amd ", "TSLA"})

	syms, err := p.GetSymbols(context.Background(), "watchlist")
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLA", "AMD"}, syms)
	assert.Zero(t, atomic.LoadInt32(hits))

	assert.Contains(t, p.Sources(), "watchlist")
	assert.Equal(t, SourceAll, p.Sources()[0])
}

func TestGetSymbols_Errors(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.GetSymbols(context.Background(), "russell2000")
	assert.ErrorIs(t, err, ErrUnknownSource)

	p.pages["broken"] = strings.Replace(p.pages[SourceSP500], "/sp500", "/gone", 1)
	_, err = p.GetSymbols(context.Background(), "broken")
	require.Error(t, err)
	var se *httputil.StatusError
	assert.ErrorAs(t, err, &se)
}

func TestParseConstituents_NoTickerColumn(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table id="constituents"><tr><th>Name</th></tr><tr><td>x</td></tr></table>`))
	require.NoError(t, err)
	assert.Empty(t, ParseConstituents(doc))
}

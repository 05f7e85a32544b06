package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Three sessions at 09:30 New York (UTC-5): a duplicate of the second one,
// a null close and a zero close.
const aaplChart = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","currency":"USD","gmtoffset":-18000,"exchangeTimezoneName":"America/New_York"},
  "timestamp":[1704205800,1704292200,1704295800,1704378600,1704465000,1704724200],
  "indicators":{
    "quote":[{"close":[185.64,184.25,184.3,null,0,185.56]}],
    "adjclose":[{"adjclose":[184.9,183.5,183.6,null,0,184.8]}]
  }}],"error":null}}`

const notFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

const inrChart = `{"chart":{"result":[{
  "meta":{"symbol":"INR=X","gmtoffset":0,"exchangeTimezoneName":"Europe/London"},
  "timestamp":[1704672000,1704758400],
  "indicators":{"quote":[{"close":[83.1,83.27]}]}}],"error":null}}`

func newTestClient(t *testing.T) (*Client, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/v8/finance/chart/AAPL":
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			assert.NotEmpty(t, r.URL.Query().Get("period1"))
			_, _ = w.Write([]byte(aaplChart))
		case "/v8/finance/chart/INR=X":
			assert.Equal(t, "5d", r.URL.Query().Get("range"))
			_, _ = w.Write([]byte(inrChart))
		case "/v8/finance/chart/EMPTY":
			_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
		case "/v8/finance/chart/BROKEN":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notFound))
		}
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, RequestsPerSecond: 100, Burst: 10, UserAgent: "test"}, nil)
	return c, &paths
}

func TestFetchHistoryCleansRows(t *testing.T) {
	c, _ := newTestClient(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s, err := c.FetchHistory(context.Background(), "AAPL", start, start.AddDate(0, 0, 10))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-08"}, s.Labels())
	// adjusted closes, duplicate date keeps the later row
	assert.Equal(t, []float64{184.9, 183.6, 184.8}, s.Closes())
}

func TestFetchHistoryUnknownSymbolIsEmpty(t *testing.T) {
	c, _ := newTestClient(t)
	now := time.Now()

	s, err := c.FetchHistory(context.Background(), "NOPE", now.AddDate(-1, 0, 0), now)
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = c.FetchHistory(context.Background(), "EMPTY", now.AddDate(-1, 0, 0), now)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestFetchHistoryUpstreamFailure(t *testing.T) {
	c, _ := newTestClient(t)
	now := time.Now()
	_, err := c.FetchHistory(context.Background(), "BROKEN", now.AddDate(-1, 0, 0), now)
	assert.Error(t, err)
}

func TestFetchConversionRate(t *testing.T) {
	c, paths := newTestClient(t)
	r, err := c.FetchConversionRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 83.27, r)
	assert.Equal(t, []string{"/v8/finance/chart/INR=X"}, *paths)
}

func TestFetchConversionRateMissing(t *testing.T) {
	c, _ := newTestClient(t)
	c.rateSymbol = "GONE=X"
	_, err := c.FetchConversionRate(context.Background())
	assert.Error(t, err)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchHistory(ctx, "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	assert.Error(t, err)
}

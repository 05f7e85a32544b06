package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	xhttp "PricePortal/pkg/http"
	"PricePortal/pkg/logger"
	"PricePortal/pkg/util"

	"golang.org/x/time/rate"
)

// Config holds the data source settings.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	RateSymbol        string
}

// Client implements PriceFetcher over the Yahoo Finance chart API.
type Client struct {
	baseURL    string
	rateSymbol string
	http       *xhttp.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

var _ drepo.PriceFetcher = (*Client)(nil)

// New creates a rate-limited chart API client.
func New(cfg Config, log *logger.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	symbol := cfg.RateSymbol
	if symbol == "" {
		symbol = "INR=X"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(timeout)}
	if cfg.UserAgent != "" {
		opts = append(opts, xhttp.WithHeader("User-Agent", cfg.UserAgent))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		rateSymbol: symbol,
		http:       xhttp.NewClient(opts...),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        log.Component("yahoo"),
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int    `json:"gmtoffset"`
		Timezone  string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// FetchHistory returns adjusted daily closes for symbol in [start, end).
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error) {
	q := map[string][]string{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
		"interval": {"1d"},
		"events":   {"history"},
	}
	res, err := c.chart(ctx, symbol, q)
	if err != nil || res == nil {
		return nil, err
	}
	return toSeries(res), nil
}

// FetchConversionRate returns the latest USD->INR close.
func (c *Client) FetchConversionRate(ctx context.Context) (float64, error) {
	res, err := c.chart(ctx, c.rateSymbol, map[string][]string{
		// a few days so weekends and holidays still have a bar
		"range":    {"5d"},
		"interval": {"1d"},
	})
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, fmt.Errorf("conversion rate %s: %w", c.rateSymbol, models.ErrSymbolNotFound)
	}
	s := toSeries(res)
	if len(s) == 0 {
		return 0, fmt.Errorf("conversion rate %s: no data", c.rateSymbol)
	}
	return s.LastClose(), nil
}

// chart returns nil result without error when the symbol is unknown.
func (c *Client) chart(ctx context.Context, symbol string, query map[string][]string) (*chartResult, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	started := time.Now()
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: query,
	}, &resp)

	var se *xhttp.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusUnprocessableEntity) {
		c.log.Debug("symbol not found", logger.String("symbol", symbol), logger.Int("status", se.Code))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}

	c.log.Debug("chart fetched",
		logger.String("symbol", symbol),
		logger.Duration("took_ms", time.Since(started)),
	)

	if len(resp.Chart.Result) == 0 {
		if resp.Chart.Error != nil {
			c.log.Debug("chart error", logger.String("symbol", symbol), logger.String("code", resp.Chart.Error.Code))
		}
		return nil, nil
	}
	return &resp.Chart.Result[0], nil
}

// toSeries converts a chart result into a clean series: rows with missing or
// non-positive closes are dropped and dates are de-duplicated keeping the
// latest row. Dates are taken in the exchange's offset.
func toSeries(r *chartResult) models.PriceSeries {
	var closes []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		closes = r.Indicators.AdjClose[0].AdjClose
	} else if len(r.Indicators.Quote) > 0 {
		closes = r.Indicators.Quote[0].Close
	}

	loc := time.FixedZone(r.Meta.Timezone, r.Meta.GMTOffset)
	out := make(models.PriceSeries, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		v := *closes[i]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		day := util.StartOfDay(time.Unix(ts, 0), loc)
		if n := len(out); n > 0 {
			switch {
			case day.Equal(out[n-1].Date):
				out[n-1].Close = v
				continue
			case day.Before(out[n-1].Date):
				continue
			}
		}
		out = append(out, models.PriceBar{Date: day, Close: v})
	}
	return out
}

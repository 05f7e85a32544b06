package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"PricePortal/internal/domain/models"
	"PricePortal/internal/domain/service"
	"PricePortal/internal/services/preprocess"
	xhttp "PricePortal/pkg/http"
	"PricePortal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

type predictionFixture struct {
	svc       *PredictionService
	fetcher   *fakeFetcher
	engine    *fakeEngine
	metrics   *fakeMetrics
	publisher *fakePublisher
}

// scaler maps [50, 150] onto [0, 1]; an engine output of 0.6 denormalizes to 110.
func newPredictionFixture(series models.PriceSeries) *predictionFixture {
	f := &predictionFixture{
		fetcher:   &fakeFetcher{series: series, rate: 2},
		engine:    &fakeEngine{out: 0.6},
		metrics:   newFakeMetrics(),
		publisher: &fakePublisher{},
	}
	predictor := NewPredictorContext(f.engine, preprocess.ScalerState{Min: 50, Max: 150})
	f.svc = NewPredictionService(f.fetcher, predictor, f.publisher, f.metrics, logger.Nop(), DefaultFallbackRate)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func requireAppError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var appErr *xhttp.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, msg, appErr.Message)
}

func TestPredict_HappyPath(t *testing.T) {
	f := newPredictionFixture(flatSeries(250))

	resp, err := f.svc.Predict(context.Background(), "aapl", "alice")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, "200.00", resp.LastClose)
	assert.Equal(t, "220.00", resp.PredictedClose)
	assert.Equal(t, "200.00", resp.MovingAverage100d)
	assert.Equal(t, "200.00", resp.MovingAverage200d)
	assert.Equal(t, models.TrendUp, resp.Trend)
	assert.Equal(t, "70.0", resp.Confidence)

	// the window is the last 60 normalized closes
	require.Len(t, f.engine.window, preprocess.Lookback)
	for _, v := range f.engine.window {
		assert.InDelta(t, 0.5, v, 1e-12)
	}

	// one year back from now
	assert.Equal(t, "AAPL", f.fetcher.symbol)
	assert.True(t, f.fetcher.lastEnd.Equal(fixedNow))
	assert.True(t, f.fetcher.lastStart.Equal(fixedNow.AddDate(0, 0, -365)))

	cd := resp.ChartData
	require.Len(t, cd.Labels, 250)
	require.Len(t, cd.ClosePrices, 250)
	require.Len(t, cd.MA100, 250)
	require.Len(t, cd.MA200, 250)
	assert.Equal(t, "2023-01-02", cd.Labels[0])
	assert.InDelta(t, 200.0, cd.ClosePrices[0], 1e-9)
	assert.Nil(t, cd.MA100[98])
	require.NotNil(t, cd.MA100[99])
	assert.InDelta(t, 200.0, *cd.MA100[99], 1e-9)
	assert.Nil(t, cd.MA200[198])
	require.NotNil(t, cd.MA200[199])

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "AAPL", ev.Ticker)
	assert.Equal(t, "alice", ev.Username)
	assert.InDelta(t, 220.0, ev.PredictedPrice, 1e-9)
	assert.Equal(t, 2.0, ev.Rate)
	assert.False(t, ev.RateFallback)
	assert.Equal(t, "fake", ev.Engine)
	assert.Equal(t, 1, f.metrics.predictions["ok"])
	assert.Equal(t, 1, f.metrics.events["publish/ok"])
}

func TestPredict_ChartTruncatedToLast300(t *testing.T) {
	f := newPredictionFixture(flatSeries(365))

	resp, err := f.svc.Predict(context.Background(), "MSFT", "")
	require.NoError(t, err)

	cd := resp.ChartData
	require.Len(t, cd.Labels, 300)
	require.Len(t, cd.ClosePrices, 300)
	require.Len(t, cd.MA100, 300)
	require.Len(t, cd.MA200, 300)
	assert.Equal(t, "2023-03-08", cd.Labels[0])
	assert.Equal(t, "2024-01-01", cd.Labels[299])
	// averages were computed on the full year before truncation
	assert.Nil(t, cd.MA100[33])
	assert.NotNil(t, cd.MA100[34])
	assert.Nil(t, cd.MA200[133])
	assert.NotNil(t, cd.MA200[134])
}

func TestPredict_FallbackRate(t *testing.T) {
	f := newPredictionFixture(flatSeries(120))
	f.fetcher.rateErr = errors.New("yahoo: 503")

	resp, err := f.svc.Predict(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "8300.00", resp.LastClose)
	assert.Equal(t, "9130.00", resp.PredictedClose)
	assert.Equal(t, 1, f.metrics.fxFallbacks)
	require.Len(t, f.publisher.events, 1)
	assert.True(t, f.publisher.events[0].RateFallback)
	assert.Equal(t, 83.0, f.publisher.events[0].Rate)
}

func TestPredict_ZeroRateUsesFallback(t *testing.T) {
	f := newPredictionFixture(flatSeries(120))
	f.fetcher.rate = 0

	resp, err := f.svc.Predict(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "8300.00", resp.LastClose)
	assert.Equal(t, 1, f.metrics.fxFallbacks)
}

func TestPredict_UndefinedAveragesAreZero(t *testing.T) {
	f := newPredictionFixture(flatSeries(80))

	resp, err := f.svc.Predict(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "0.00", resp.MovingAverage100d)
	assert.Equal(t, "0.00", resp.MovingAverage200d)
	for _, v := range resp.ChartData.MA100 {
		assert.Nil(t, v)
	}
}

func TestPredict_EmptyHistoryIsNotFound(t *testing.T) {
	f := newPredictionFixture(nil)

	_, err := f.svc.Predict(context.Background(), "ZZZZ", "")
	requireAppError(t, err, http.StatusNotFound, MsgNoData)
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)
	assert.Empty(t, f.publisher.events)
}

func TestPredict_InsufficientHistory(t *testing.T) {
	f := newPredictionFixture(flatSeries(59))

	_, err := f.svc.Predict(context.Background(), "NEWCO", "")
	requireAppError(t, err, http.StatusBadRequest, MsgInsufficientData)
	assert.ErrorIs(t, err, preprocess.ErrInsufficientHistory)
	assert.Nil(t, f.engine.window)
}

func TestPredict_ExactlyLookbackRows(t *testing.T) {
	f := newPredictionFixture(flatSeries(60))

	_, err := f.svc.Predict(context.Background(), "NEWCO", "")
	require.NoError(t, err)
	assert.Len(t, f.engine.window, 60)
}

func TestPredict_ModelNotLoaded(t *testing.T) {
	f := newPredictionFixture(flatSeries(120))
	f.svc.predictor = UnavailablePredictor(errors.New("open artifacts/scaler.json: no such file"))

	_, err := f.svc.Predict(context.Background(), "AAPL", "")
	requireAppError(t, err, http.StatusInternalServerError, MsgModelNotLoaded)
	assert.ErrorIs(t, err, models.ErrModelNotLoaded)
	assert.Equal(t, 0, f.fetcher.histCalls)
}

func TestPredict_MissingTicker(t *testing.T) {
	f := newPredictionFixture(flatSeries(120))

	_, err := f.svc.Predict(context.Background(), "  ", "")
	requireAppError(t, err, http.StatusBadRequest, MsgNoTicker)

	_, err = f.svc.Predict(context.Background(), "THIS-TICKER-IS-FAR-TOO-LONG", "")
	requireAppError(t, err, http.StatusBadRequest, MsgInvalidTicker)
	assert.Equal(t, 0, f.fetcher.histCalls)
}

func TestPredict_HistoryErrorIsUnexpected(t *testing.T) {
	f := newPredictionFixture(nil)
	f.fetcher.histErr = errors.New("connection reset")

	_, err := f.svc.Predict(context.Background(), "AAPL", "")
	require.Error(t, err)
	var appErr *xhttp.AppError
	assert.False(t, errors.As(err, &appErr))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPredict_EngineErrorIsUnexpected(t *testing.T) {
	f := newPredictionFixture(flatSeries(120))
	f.engine.err = errors.New("serving timeout")

	_, err := f.svc.Predict(context.Background(), "AAPL", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serving timeout")
	assert.Empty(t, f.publisher.events)
}

func TestPredict_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newPredictionFixture(flatSeries(120))
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Predict(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.metrics.events["publish/error"])
}

func TestDerivePrediction(t *testing.T) {
	tests := []struct {
		name       string
		predicted  float64
		last       float64
		trend      models.Trend
		confidence float64
	}{
		{"up", 110, 100, models.TrendUp, 70},
		{"down", 95, 100, models.TrendDown, 60},
		{"equal is down", 100, 100, models.TrendDown, 50},
		{"capped", 200, 100, models.TrendUp, 98},
		{"capped down", 10, 100, models.TrendDown, 98},
		{"tiny gap", 100.01, 100, models.TrendUp, 50.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := derivePrediction(tt.predicted, tt.last)
			assert.Equal(t, tt.trend, p.Trend)
			assert.InDelta(t, tt.confidence, p.Confidence, 1e-9)
			assert.GreaterOrEqual(t, p.Confidence, 50.0)
			assert.LessOrEqual(t, p.Confidence, 98.0)
		})
	}
}

func TestHistoricalChart(t *testing.T) {
	f := newPredictionFixture(flatSeries(250))
	// chart data does not depend on the model
	f.svc.predictor = UnavailablePredictor(errors.New("missing"))

	resp, err := f.svc.HistoricalChart(context.Background(), "spy")
	require.NoError(t, err)
	require.Len(t, resp.Labels, 250)
	require.Len(t, resp.MA100, 250)
	require.Len(t, resp.MA200, 250)
	assert.Nil(t, resp.MA100[98])
	require.NotNil(t, resp.MA100[99])
	assert.InDelta(t, 200.0, *resp.MA100[99], 1e-9)
	assert.Nil(t, resp.MA200[198])
	assert.True(t, f.fetcher.lastStart.Equal(fixedNow.AddDate(0, 0, -3650)))
	assert.Equal(t, "SPY", f.fetcher.symbol)
}

func TestHistoricalChart_EmptyIsNotFound(t *testing.T) {
	f := newPredictionFixture(nil)

	_, err := f.svc.HistoricalChart(context.Background(), "ZZZZ")
	requireAppError(t, err, http.StatusNotFound, MsgNoChartData)
}

func TestHistoricalChart_MissingTicker(t *testing.T) {
	f := newPredictionFixture(nil)

	_, err := f.svc.HistoricalChart(context.Background(), "")
	requireAppError(t, err, http.StatusBadRequest, MsgNoTicker)
}

func TestLoadPredictorContext(t *testing.T) {
	store := newMemStore()
	m := newFakeMetrics()
	engine := &fakeEngine{}
	load := func(context.Context) (service.InferenceEngine, error) { return engine, nil }

	p := LoadPredictorContext(context.Background(), store, "scaler.json", load, m, logger.Nop())
	assert.False(t, p.Ready())
	assert.ErrorIs(t, p.Err(), models.ErrModelNotLoaded)
	assert.False(t, m.modelLoaded)

	require.NoError(t, store.Save(context.Background(), "scaler.json", preprocess.ScalerState{Min: 1, Max: 1}))
	p = LoadPredictorContext(context.Background(), store, "scaler.json", load, m, logger.Nop())
	assert.False(t, p.Ready(), "degenerate scaler must be rejected")

	require.NoError(t, store.Save(context.Background(), "scaler.json", preprocess.ScalerState{Min: 1, Max: 3}))
	failing := func(context.Context) (service.InferenceEngine, error) { return nil, errors.New("bad weights") }
	p = LoadPredictorContext(context.Background(), store, "scaler.json", failing, m, logger.Nop())
	assert.False(t, p.Ready())
	assert.Contains(t, p.Err().Error(), "bad weights")

	p = LoadPredictorContext(context.Background(), store, "scaler.json", load, m, logger.Nop())
	require.True(t, p.Ready())
	assert.True(t, m.modelLoaded)
	assert.Equal(t, "fake", p.EngineName())

	engine.out = 0.5
	got, err := p.Infer(context.Background(), flatSeries(60).Closes())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)
}

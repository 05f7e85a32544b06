package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	"PricePortal/internal/services/indicators"
	"PricePortal/internal/services/preprocess"
	xhttp "PricePortal/pkg/http"
	"PricePortal/pkg/logger"
	"PricePortal/pkg/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	predictHistoryDays = 365
	chartHistoryDays   = 3650
	chartPoints        = 300
	maxTickerLen       = 20

	// DefaultFallbackRate is the USD->INR rate used when the live rate is unavailable.
	DefaultFallbackRate = 83.0

	maxConfidence  = 98.0
	baseConfidence = 50.0
)

// Error messages returned to API clients.
const (
	MsgNoTicker           = "No ticker symbol provided."
	MsgInvalidTicker      = "Invalid ticker symbol."
	MsgModelNotLoaded     = "Model or scaler not loaded. Run priceportal train"
	MsgNoData             = "Invalid ticker or no data found"
	MsgNoChartData        = "Invalid ticker or no data found for 10-year period"
	MsgInsufficientData   = "Not enough historical data to make a prediction (need at least 60 days)."
	codeInsufficientData  = "ERR_INSUFFICIENT_HISTORY"
	codeModelNotAvailable = "ERR_MODEL_NOT_LOADED"
)

// PredictionService serves next-close predictions and long range charts.
type PredictionService struct {
	fetcher      drepo.PriceFetcher
	predictor    *PredictorContext
	publisher    drepo.PredictionPublisher
	metrics      drepo.Metrics
	log          *logger.Logger
	fallbackRate float64
	now          func() time.Time
}

func NewPredictionService(
	fetcher drepo.PriceFetcher,
	predictor *PredictorContext,
	publisher drepo.PredictionPublisher,
	metrics drepo.Metrics,
	log *logger.Logger,
	fallbackRate float64,
) *PredictionService {
	if fallbackRate <= 0 {
		fallbackRate = DefaultFallbackRate
	}
	return &PredictionService{
		fetcher:      fetcher,
		predictor:    predictor,
		publisher:    publisher,
		metrics:      metrics,
		log:          log.Component("prediction_service"),
		fallbackRate: fallbackRate,
		now:          time.Now,
	}
}

// Ready reports whether the model and scaler are loaded.
func (s *PredictionService) Ready() bool { return s.predictor.Ready() }

// Predict runs the full pipeline for ticker. username is only recorded on
// the emitted event.
func (s *PredictionService) Predict(ctx context.Context, ticker, username string) (*models.PredictionResponse, error) {
	start := s.now()
	defer func() { s.metrics.RecordLatency("predict", time.Since(start).Seconds()) }()

	symbol, appErr := normalizeTicker(ticker)
	if appErr != nil {
		s.metrics.RecordPrediction("bad_request")
		return nil, appErr
	}
	if !s.predictor.Ready() {
		s.metrics.RecordPrediction("model_unavailable")
		return nil, xhttp.ServiceUnavailableError(MsgModelNotLoaded).
			WithCode(codeModelNotAvailable).
			WithError(s.predictor.Err())
	}

	end := s.now()
	series, rate, fellBack, err := s.fetch(ctx, symbol, util.DaysBefore(end, predictHistoryDays), end)
	if err != nil {
		s.metrics.RecordPrediction("error")
		return nil, err
	}
	if len(series) == 0 {
		s.metrics.RecordPrediction("not_found")
		return nil, xhttp.NotFoundError(MsgNoData).WithError(models.ErrSymbolNotFound)
	}
	if len(series) < preprocess.Lookback {
		s.metrics.RecordPrediction("insufficient_history")
		return nil, xhttp.BadRequestError(MsgInsufficientData).
			WithCode(codeInsufficientData).
			WithError(preprocess.ErrInsufficientHistory)
	}

	closes := series.Closes()
	ma100 := indicators.SMA(closes, indicators.ShortWindow)
	ma200 := indicators.SMA(closes, indicators.LongWindow)
	lastClose := series.LastClose()

	predicted, err := s.predictor.Infer(ctx, closes)
	if err != nil {
		s.metrics.RecordPrediction("error")
		if errors.Is(err, preprocess.ErrInsufficientHistory) {
			return nil, xhttp.BadRequestError(MsgInsufficientData).WithCode(codeInsufficientData).WithError(err)
		}
		return nil, err
	}
	p := derivePrediction(predicted, lastClose)

	resp := &models.PredictionResponse{
		Ticker:            symbol,
		LastClose:         formatPrice(lastClose * rate),
		PredictedClose:    formatPrice(p.Predicted * rate),
		MovingAverage100d: formatPrice(indicators.Latest(ma100) * rate),
		MovingAverage200d: formatPrice(indicators.Latest(ma200) * rate),
		Trend:             p.Trend,
		Confidence:        strconv.FormatFloat(p.Confidence, 'f', 1, 64),
		ChartData: models.ChartData{
			Labels:      indicators.Tail(series.Labels(), chartPoints),
			ClosePrices: indicators.ScaleValues(indicators.Tail(closes, chartPoints), rate),
			MA100:       indicators.Scale(indicators.Tail(ma100, chartPoints), rate),
			MA200:       indicators.Scale(indicators.Tail(ma200, chartPoints), rate),
		},
	}

	s.metrics.RecordPrediction("ok")
	s.log.Info("prediction served",
		logger.String("ticker", symbol),
		logger.String("trend", string(p.Trend)),
		logger.Float64("confidence", p.Confidence),
		logger.Bool("rate_fallback", fellBack),
		logger.Int("rows", len(series)),
	)
	s.emit(ctx, &models.PredictionEvent{
		ID:             uuid.NewString(),
		Ticker:         symbol,
		Username:       username,
		PredictedPrice: p.Predicted * rate,
		LastClose:      lastClose * rate,
		Trend:          p.Trend,
		Confidence:     p.Confidence,
		Rate:           rate,
		RateFallback:   fellBack,
		Engine:         s.predictor.EngineName(),
		CreatedAt:      s.now().UTC(),
	})
	return resp, nil
}

// HistoricalChart returns ten years of moving averages. It does not need the model.
func (s *PredictionService) HistoricalChart(ctx context.Context, ticker string) (*models.HistoricalChartResponse, error) {
	start := s.now()
	defer func() { s.metrics.RecordLatency("historical_chart", time.Since(start).Seconds()) }()

	symbol, appErr := normalizeTicker(ticker)
	if appErr != nil {
		return nil, appErr
	}

	end := s.now()
	series, rate, _, err := s.fetch(ctx, symbol, util.DaysBefore(end, chartHistoryDays), end)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, xhttp.NotFoundError(MsgNoChartData).WithError(models.ErrSymbolNotFound)
	}

	closes := series.Closes()
	return &models.HistoricalChartResponse{
		Labels: series.Labels(),
		MA100:  indicators.Scale(indicators.SMA(closes, indicators.ShortWindow), rate),
		MA200:  indicators.Scale(indicators.SMA(closes, indicators.LongWindow), rate),
	}, nil
}

// fetch loads history and the conversion rate concurrently. A failed or
// empty rate never fails the call; the fallback rate is used instead.
func (s *PredictionService) fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, float64, bool, error) {
	var (
		series  models.PriceSeries
		rate    float64
		rateErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = s.fetcher.FetchHistory(gctx, symbol, from, to)
		if err != nil {
			return fmt.Errorf("fetch history for %s: %w", symbol, err)
		}
		return nil
	})
	g.Go(func() error {
		rate, rateErr = s.fetcher.FetchConversionRate(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, false, err
	}

	if rateErr != nil || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		fields := []logger.Field{logger.Float64("fallback_rate", s.fallbackRate)}
		if rateErr != nil {
			fields = append(fields, logger.Error(rateErr))
		}
		s.log.Warn("conversion rate unavailable, using fallback", fields...)
		s.metrics.RecordFXFallback()
		return series, s.fallbackRate, true, nil
	}
	return series, rate, false, nil
}

func (s *PredictionService) emit(ctx context.Context, e *models.PredictionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.metrics.RecordEvent("publish", "error")
		s.log.Warn("publish prediction event", logger.Error(err), logger.String("ticker", e.Ticker))
		return
	}
	s.metrics.RecordEvent("publish", "ok")
}

func normalizeTicker(raw string) (string, *xhttp.AppError) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", xhttp.BadRequestError(MsgNoTicker)
	}
	if len(t) > maxTickerLen || strings.ContainsAny(t, " /?#") {
		return "", xhttp.BadRequestError(MsgInvalidTicker)
	}
	return strings.ToUpper(t), nil
}

// derivePrediction applies the trend rule and the linear confidence
// heuristic, capped at 98 and never below 50.
func derivePrediction(predicted, lastClose float64) models.Prediction {
	trend := models.TrendDown
	if predicted > lastClose {
		trend = models.TrendUp
	}
	confidence := baseConfidence
	if lastClose > 0 {
		confidence = math.Min(maxConfidence, baseConfidence+math.Abs(predicted-lastClose)/lastClose*100*2)
	}
	return models.Prediction{
		Predicted:  predicted,
		LastClose:  lastClose,
		Trend:      trend,
		Confidence: confidence,
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

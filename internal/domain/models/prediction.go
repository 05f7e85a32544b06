package models

import "time"

type Trend string

const (
	TrendUp   Trend = "Up"
	TrendDown Trend = "Down"
)

// Prediction is the model output before currency conversion and formatting.
type Prediction struct {
	Predicted  float64
	LastClose  float64
	Trend      Trend
	Confidence float64
}

// ChartData holds date-aligned series; nil entries mark undefined averages.
type ChartData struct {
	Labels      []string   `json:"labels"`
	ClosePrices []float64  `json:"close_prices"`
	MA100       []*float64 `json:"ma_100"`
	MA200       []*float64 `json:"ma_200"`
}

// PredictionResponse is the body of GET /api/predict/{ticker}/.
type PredictionResponse struct {
	Ticker            string    `json:"ticker"`
	LastClose         string    `json:"last_close_inr"`
	PredictedClose    string    `json:"predicted_next_close_inr"`
	MovingAverage100d string    `json:"moving_average_100d_inr"`
	MovingAverage200d string    `json:"moving_average_200d_inr"`
	Trend             Trend     `json:"trend_prediction"`
	Confidence        string    `json:"confidence_percent"`
	ChartData         ChartData `json:"chart_data"`
}

// HistoricalChartResponse is the body of GET /api/historical-chart/{ticker}/.
type HistoricalChartResponse struct {
	Labels []string   `json:"labels"`
	MA100  []*float64 `json:"ma_100"`
	MA200  []*float64 `json:"ma_200"`
}

// PredictionEvent is emitted after a successful prediction for archiving.
type PredictionEvent struct {
	ID             string    `json:"id"`
	Ticker         string    `json:"ticker"`
	Username       string    `json:"username"`
	PredictedPrice float64   `json:"predicted_price"`
	LastClose      float64   `json:"last_close"`
	Trend          Trend     `json:"trend"`
	Confidence     float64   `json:"confidence"`
	Rate           float64   `json:"rate"`
	RateFallback   bool      `json:"rate_fallback"`
	Engine         string    `json:"engine"`
	CreatedAt      time.Time `json:"created_at"`
}

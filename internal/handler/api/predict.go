package api

import (
	"context"

	"PricePortal/internal/domain/models"
	"PricePortal/internal/middleware"
	xhttp "PricePortal/pkg/http"
	xlogger "PricePortal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Predictor is the prediction usecase as seen by HTTP.
type Predictor interface {
	Predict(ctx context.Context, ticker, username string) (*models.PredictionResponse, error)
	HistoricalChart(ctx context.Context, ticker string) (*models.HistoricalChartResponse, error)
}

// PredictHandler serves the authenticated prediction endpoints.
type PredictHandler struct {
	logger    *xlogger.Logger
	predictor Predictor
	auth      echo.MiddlewareFunc
}

func NewPredictHandler(logger *xlogger.Logger, predictor Predictor, tokens middleware.TokenAuthenticator) *PredictHandler {
	return &PredictHandler{
		logger:    logger.Component("predict_handler"),
		predictor: predictor,
		auth:      middleware.JWTAuth(tokens),
	}
}

func (h *PredictHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/predict/:ticker/", h.Predict, h.auth)
	e.GET("/api/historical-chart/:ticker/", h.HistoricalChart, h.auth)
}

func (h *PredictHandler) Predict(c echo.Context) error {
	res, err := h.predictor.Predict(c.Request().Context(), c.Param("ticker"), middleware.Username(c))
	if err != nil {
		h.logError("predict", c, err)
		return xhttp.ErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictHandler) HistoricalChart(c echo.Context) error {
	res, err := h.predictor.HistoricalChart(c.Request().Context(), c.Param("ticker"))
	if err != nil {
		h.logError("historical chart", c, err)
		return xhttp.ErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictHandler) logError(op string, c echo.Context, err error) {
	var appErr *xhttp.AppError
	fields := []xlogger.Field{
		xlogger.String("op", op),
		xlogger.String("ticker", c.Param("ticker")),
		xlogger.Error(err),
	}
	if asAppError(err, &appErr) && appErr.Status < 500 {
		h.logger.Debug("request rejected", fields...)
		return
	}
	h.logger.Error("request failed", fields...)
}

package usecase

import (
	"context"
	"fmt"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	"PricePortal/internal/domain/service"
	"PricePortal/internal/services/preprocess"
	"PricePortal/pkg/logger"
)

// EngineLoader builds the inference engine, typically from the artifact store.
type EngineLoader func(ctx context.Context) (service.InferenceEngine, error)

// PredictorContext is the model and scaler pair loaded once at startup.
// It is never mutated afterwards, so concurrent requests share it freely.
type PredictorContext struct {
	engine service.InferenceEngine
	scaler preprocess.ScalerState
	err    error
}

// NewPredictorContext wraps an already loaded engine and scaler.
func NewPredictorContext(engine service.InferenceEngine, scaler preprocess.ScalerState) *PredictorContext {
	if engine == nil {
		return UnavailablePredictor(fmt.Errorf("nil inference engine"))
	}
	if err := scaler.Validate(); err != nil {
		return UnavailablePredictor(err)
	}
	return &PredictorContext{engine: engine, scaler: scaler}
}

// UnavailablePredictor records why the predictor could not be loaded.
// Predictions fail until the process is restarted with valid artifacts.
func UnavailablePredictor(cause error) *PredictorContext {
	return &PredictorContext{err: fmt.Errorf("%w: %v", models.ErrModelNotLoaded, cause)}
}

// LoadPredictorContext loads the scaler from store and the engine via
// loadEngine. A failure is logged and yields an unavailable context so the
// rest of the API keeps serving.
func LoadPredictorContext(ctx context.Context, store drepo.ArtifactStore, scalerPath string, loadEngine EngineLoader, m drepo.Metrics, log *logger.Logger) *PredictorContext {
	log = log.Component("predictor")

	var scaler preprocess.ScalerState
	if err := store.Load(ctx, scalerPath, &scaler); err != nil {
		return unavailable(err, m, log)
	}
	engine, err := loadEngine(ctx)
	if err != nil {
		return unavailable(err, m, log)
	}

	p := NewPredictorContext(engine, scaler)
	if p.err != nil {
		return unavailable(p.err, m, log)
	}
	m.SetModelLoaded(true)
	log.Info("predictor loaded",
		logger.String("engine", engine.Name()),
		logger.Float64("scaler_min", scaler.Min),
		logger.Float64("scaler_max", scaler.Max),
	)
	return p
}

func unavailable(err error, m drepo.Metrics, log *logger.Logger) *PredictorContext {
	m.SetModelLoaded(false)
	log.Error("predictor unavailable, run the trainer", logger.Error(err))
	return UnavailablePredictor(err)
}

// Ready reports whether predictions can be served.
func (p *PredictorContext) Ready() bool { return p != nil && p.err == nil }

// Err is the load failure, nil when ready.
func (p *PredictorContext) Err() error {
	if p == nil {
		return models.ErrModelNotLoaded
	}
	return p.err
}

// EngineName is the active engine, empty when unavailable.
func (p *PredictorContext) EngineName() string {
	if !p.Ready() {
		return ""
	}
	return p.engine.Name()
}

// Infer normalizes closes, windows the tail and denormalizes the model output.
func (p *PredictorContext) Infer(ctx context.Context, closes []float64) (float64, error) {
	if !p.Ready() {
		return 0, p.Err()
	}
	window, err := preprocess.MakeInferenceWindow(p.scaler.TransformSeries(closes), preprocess.Lookback)
	if err != nil {
		return 0, err
	}
	y, err := p.engine.Predict(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("inference: %w", err)
	}
	return p.scaler.InverseTransform(y), nil
}

package inference

import (
	"context"
	"fmt"
	"math"

	"PricePortal/internal/domain/models"
)

// NativeEngine evaluates an exported LSTM artifact in process. It is
// immutable after construction and safe for concurrent use.
type NativeEngine struct {
	lookback int
	layers   []layer
}

// NewNativeEngine validates the artifact and compiles it.
func NewNativeEngine(a *models.ModelArtifact) (*NativeEngine, error) {
	if a == nil {
		return nil, fmt.Errorf("nil model artifact")
	}
	if a.Features > 1 {
		return nil, fmt.Errorf("artifact expects %d features, only univariate input is supported", a.Features)
	}
	layers, err := buildLayers(a)
	if err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return &NativeEngine{lookback: a.Lookback, layers: layers}, nil
}

func (e *NativeEngine) Name() string { return "native" }

// Predict runs the forward pass over one normalized window.
func (e *NativeEngine) Predict(ctx context.Context, window []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.lookback > 0 && len(window) != e.lookback {
		return 0, fmt.Errorf("window has %d values, model expects %d", len(window), e.lookback)
	}

	seq := make([][]float64, len(window))
	for i, v := range window {
		seq[i] = []float64{v}
	}
	for _, l := range e.layers {
		seq = l.forward(seq)
	}

	out := seq[len(seq)-1][0]
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("model produced non-finite output")
	}
	return out, nil
}

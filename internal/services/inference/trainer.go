package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PricePortal/internal/domain/service"
)

// HTTPTrainer delegates fitting to a trainer sidecar exposing POST /train.
type HTTPTrainer struct {
	*HTTPServiceBase
}

func NewHTTPTrainer(baseURL string, timeout time.Duration) *HTTPTrainer {
	return &HTTPTrainer{HTTPServiceBase: NewHTTPServiceBase(baseURL, timeout)}
}

// Fit sends the dataset and returns the fitted artifact with per-epoch loss.
func (t *HTTPTrainer) Fit(ctx context.Context, set *service.TrainingSet) (*service.TrainingResult, error) {
	var res service.TrainingResult
	if err := t.PostJSON(ctx, "/train", set, &res); err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	if res.Model == nil {
		return nil, errors.New("trainer: response has no model")
	}
	// reject artifacts this service could not serve
	if _, err := NewNativeEngine(res.Model); err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	return &res, nil
}

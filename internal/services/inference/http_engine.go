package inference

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// HTTPEngine calls a TensorFlow Serving compatible REST endpoint.
type HTTPEngine struct {
	*HTTPServiceBase
	model    string
	attempts int
}

// NewHTTPEngine targets {baseURL}/v1/models/{model}:predict.
func NewHTTPEngine(baseURL, model string, timeout time.Duration) *HTTPEngine {
	return &HTTPEngine{
		HTTPServiceBase: NewHTTPServiceBase(baseURL, timeout),
		model:           model,
		attempts:        2,
	}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Predict(ctx context.Context, window []float64) (float64, error) {
	instance := make([][]float64, len(window))
	for i, v := range window {
		instance[i] = []float64{v}
	}

	var resp predictResponse
	path := "/v1/models/" + url.PathEscape(e.model) + ":predict"
	if err := e.PostJSONWithRetry(ctx, path, predictRequest{Instances: [][][]float64{instance}}, &resp, e.attempts); err != nil {
		return 0, fmt.Errorf("model serving: %w", err)
	}
	if len(resp.Predictions) != 1 || len(resp.Predictions[0]) != 1 {
		return 0, fmt.Errorf("model serving: unexpected prediction shape")
	}
	return resp.Predictions[0][0], nil
}

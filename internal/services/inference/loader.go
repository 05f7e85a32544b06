package inference

import (
	"context"
	"fmt"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	"PricePortal/internal/domain/service"
)

// Engine kinds accepted by LoadEngine.
const (
	EngineNative = "native"
	EngineHTTP   = "http"
)

// EngineConfig selects and locates the inference backend.
type EngineConfig struct {
	Engine       string
	ArtifactPath string
	ServingURL   string
	ServingName  string
	Timeout      time.Duration
}

// LoadEngine builds the configured engine. The native engine reads its
// weights from store; the http engine only needs the serving address.
func LoadEngine(ctx context.Context, store drepo.ArtifactStore, cfg EngineConfig) (service.InferenceEngine, error) {
	switch cfg.Engine {
	case "", EngineNative:
		var a models.ModelArtifact
		if err := store.Load(ctx, cfg.ArtifactPath, &a); err != nil {
			return nil, err
		}
		return NewNativeEngine(&a)
	case EngineHTTP:
		if cfg.ServingURL == "" {
			return nil, fmt.Errorf("inference: serving url is required for the http engine")
		}
		return NewHTTPEngine(cfg.ServingURL, cfg.ServingName, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("inference: unknown engine %q", cfg.Engine)
	}
}

package repository

import (
	"context"
	"time"

	"PricePortal/internal/domain/models"
)

// PriceFetcher is the market data source.
type PriceFetcher interface {
	// FetchHistory returns daily closes in [start, end). An unknown symbol
	// yields an empty series, not an error.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (models.PriceSeries, error)
	// FetchConversionRate returns the most recent USD->INR close.
	FetchConversionRate(ctx context.Context) (float64, error)
}

type UserRepository interface {
	Init(ctx context.Context) error // ensure tables
	Create(ctx context.Context, u *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Health(ctx context.Context) error
}

// PredictionPublisher emits prediction events to the event stream.
type PredictionPublisher interface {
	Publish(ctx context.Context, e *models.PredictionEvent) error
	Close() error
}

// PredictionArchive stores prediction events for analytics.
type PredictionArchive interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, events []*models.PredictionEvent) error
	Health(ctx context.Context) error
	Close() error
}

// ArtifactStore persists JSON artifacts by path.
type ArtifactStore interface {
	Save(ctx context.Context, path string, v interface{}) error
	Load(ctx context.Context, path string, v interface{}) error
}

type Metrics interface {
	RecordPrediction(outcome string)
	RecordFXFallback()
	RecordError(kind string)
	RecordEvent(stage, status string)
	SetModelLoaded(loaded bool)
	RecordLatency(op string, seconds float64)
	RecordTraining(status string, trainLoss, valLoss float64)
	RecordCacheLookup(kind string, hit bool)
}

package service

import (
	"context"

	"PricePortal/internal/domain/models"
)

// InferenceEngine maps one normalized window to one normalized next value.
type InferenceEngine interface {
	Predict(ctx context.Context, window []float64) (float64, error)
	Name() string
}

// TrainingSet is the windowed input handed to a Trainer.
type TrainingSet struct {
	Lookback  int         `json:"lookback"`
	TrainX    [][]float64 `json:"train_x"`
	TrainY    []float64   `json:"train_y"`
	TestX     [][]float64 `json:"test_x"`
	TestY     []float64   `json:"test_y"`
	Epochs    int         `json:"epochs"`
	BatchSize int         `json:"batch_size"`
}

// TrainingResult is what a Trainer returns after fitting.
type TrainingResult struct {
	Model   *models.ModelArtifact `json:"model"`
	History []models.EpochLoss    `json:"history"`
}

// Trainer fits the predictor on a prepared dataset.
type Trainer interface {
	Fit(ctx context.Context, set *TrainingSet) (*TrainingResult, error)
}

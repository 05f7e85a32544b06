package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	"PricePortal/internal/domain/service"
	"PricePortal/internal/services/preprocess"
	"PricePortal/pkg/logger"
	"PricePortal/pkg/util"
)

// ErrEmptyDataset means the split left no training or test samples.
var ErrEmptyDataset = errors.New("training: dataset produced no samples")

// TrainingConfig parameterizes one offline run.
type TrainingConfig struct {
	Symbol     string
	Start      time.Time
	End        time.Time
	Epochs     int
	BatchSize  int
	TrainRatio float64
	ModelPath  string
	ScalerPath string
}

// TrainingReport summarizes a finished run.
type TrainingReport struct {
	Rows         int
	TrainSamples int
	TestSamples  int
	Scaler       preprocess.ScalerState
	History      []models.EpochLoss
	Duration     time.Duration
}

// TrainingPipeline fetches history, prepares windows, delegates fitting
// and persists the model and scaler artifacts.
type TrainingPipeline struct {
	fetcher drepo.PriceFetcher
	trainer service.Trainer
	store   drepo.ArtifactStore
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     TrainingConfig
	now     func() time.Time
}

func NewTrainingPipeline(
	fetcher drepo.PriceFetcher,
	trainer service.Trainer,
	store drepo.ArtifactStore,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg TrainingConfig,
) *TrainingPipeline {
	if cfg.Epochs <= 0 {
		cfg.Epochs = 20
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = 0.8
	}
	return &TrainingPipeline{
		fetcher: fetcher,
		trainer: trainer,
		store:   store,
		metrics: metrics,
		log:     log.Component("training"),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run executes the pipeline once. Artifacts are only written when fitting succeeds.
func (p *TrainingPipeline) Run(ctx context.Context) (*TrainingReport, error) {
	started := p.now()
	report, err := p.run(ctx)
	if err != nil {
		p.metrics.RecordTraining("error", 0, 0)
		p.log.Error("training failed", logger.Error(err))
		return nil, err
	}
	report.Duration = p.now().Sub(started)

	var trainLoss, valLoss float64
	if n := len(report.History); n > 0 {
		trainLoss, valLoss = report.History[n-1].Loss, report.History[n-1].ValLoss
	}
	p.metrics.RecordTraining("ok", trainLoss, valLoss)
	p.log.Info("training complete",
		logger.Duration("duration", report.Duration),
		logger.Float64("loss", trainLoss),
		logger.Float64("val_loss", valLoss),
		logger.String("model_path", p.cfg.ModelPath),
		logger.String("scaler_path", p.cfg.ScalerPath),
	)
	return report, nil
}

func (p *TrainingPipeline) run(ctx context.Context) (*TrainingReport, error) {
	p.log.Info("fetching history",
		logger.String("symbol", p.cfg.Symbol),
		logger.String("start", util.FormatDate(p.cfg.Start)),
		logger.String("end", util.FormatDate(p.cfg.End)),
	)
	series, err := p.fetcher.FetchHistory(ctx, p.cfg.Symbol, p.cfg.Start, p.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", p.cfg.Symbol, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%s: %w", p.cfg.Symbol, models.ErrSymbolNotFound)
	}

	closes := series.Closes()
	// fitted over the full range, test split included
	scaler, err := preprocess.Fit(closes)
	if err != nil {
		return nil, err
	}
	scaled := scaler.TransformSeries(closes)

	train, test := preprocess.TrainTestSplit(scaled, p.cfg.TrainRatio, preprocess.Lookback)
	trainX, trainY := preprocess.SplitPairs(preprocess.MakeTrainingPairs(train, preprocess.Lookback))
	testX, testY := preprocess.SplitPairs(preprocess.MakeTrainingPairs(test, preprocess.Lookback))
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, fmt.Errorf("%w: %d rows, %d train and %d test windows", ErrEmptyDataset, len(closes), len(trainX), len(testX))
	}
	p.log.Info("dataset prepared",
		logger.Int("rows", len(closes)),
		logger.String("x_train_shape", fmt.Sprintf("(%d, %d, 1)", len(trainX), preprocess.Lookback)),
		logger.String("y_train_shape", fmt.Sprintf("(%d,)", len(trainY))),
		logger.String("x_test_shape", fmt.Sprintf("(%d, %d, 1)", len(testX), preprocess.Lookback)),
		logger.String("y_test_shape", fmt.Sprintf("(%d,)", len(testY))),
	)

	res, err := p.trainer.Fit(ctx, &service.TrainingSet{
		Lookback:  preprocess.Lookback,
		TrainX:    trainX,
		TrainY:    trainY,
		TestX:     testX,
		TestY:     testY,
		Epochs:    p.cfg.Epochs,
		BatchSize: p.cfg.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	if res == nil || res.Model == nil {
		return nil, errors.New("fit model: trainer returned no model")
	}
	for _, e := range res.History {
		p.log.Info("epoch",
			logger.Int("epoch", e.Epoch),
			logger.Float64("loss", e.Loss),
			logger.Float64("val_loss", e.ValLoss),
		)
	}

	model := res.Model
	if model.Lookback == 0 {
		model.Lookback = preprocess.Lookback
	}
	if model.Features == 0 {
		model.Features = 1
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = p.now().UTC()
	}
	if err := p.store.Save(ctx, p.cfg.ModelPath, model); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	if err := p.store.Save(ctx, p.cfg.ScalerPath, scaler); err != nil {
		return nil, fmt.Errorf("save scaler: %w", err)
	}

	return &TrainingReport{
		Rows:         len(closes),
		TrainSamples: len(trainX),
		TestSamples:  len(testX),
		Scaler:       scaler,
		History:      res.History,
	}, nil
}

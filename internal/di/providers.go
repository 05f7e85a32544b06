package di

import (
	"context"
	"fmt"
	"time"

	"PricePortal/internal/domain/repository"
	"PricePortal/internal/domain/service"
	"PricePortal/internal/handler/api"
	internalrepo "PricePortal/internal/repository"
	"PricePortal/internal/service/auth"
	icache "PricePortal/internal/service/cache"
	"PricePortal/internal/service/ratelimit"
	"PricePortal/internal/service/yahoo"
	"PricePortal/internal/services/inference"
	"PricePortal/internal/usecase"
	pcache "PricePortal/pkg/cache"
	pkgch "PricePortal/pkg/clickhouse"
	"PricePortal/pkg/config"
	xhttp "PricePortal/pkg/http"
	pkgkafka "PricePortal/pkg/kafka"
	"PricePortal/pkg/logger"
	"PricePortal/pkg/metrics"
	"PricePortal/pkg/postgres"
	"PricePortal/pkg/server"

	"github.com/jackc/pgx/v5/pgxpool"
)

const initTimeout = 10 * time.Second

// ProvideLogger builds the root logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePostgresPool connects to Postgres.
func ProvidePostgresPool(cfg *config.Config) (*pgxpool.Pool, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx,
		postgres.WithURL(cfg.Postgres.URL),
		postgres.WithPoolSize(cfg.Postgres.MinConns, cfg.Postgres.MaxConns),
		postgres.WithMaxConnLifetime(cfg.Postgres.MaxConnLifetime),
		postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return pool, pool.Close, nil
}

// ProvideUserRepository returns the account store with its table in place.
func ProvideUserRepository(pool *pgxpool.Pool) (repository.UserRepository, error) {
	return newUserRepository(pool)
}

func newUserRepository(db postgres.Querier) (repository.UserRepository, error) {
	users := internalrepo.NewPostgresUserRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := users.Init(ctx); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return users, nil
}

// ProvideCache returns the market data cache: an in-process LRU, layered over
// Redis when redis is enabled. A disabled cache yields nil.
func ProvideCache(cfg *config.Config, log *logger.Logger) (pcache.Service, func(), error) {
	if cfg.Cache.Disabled {
		return nil, func() {}, nil
	}
	var c pcache.Service
	if cfg.Redis.Enabled {
		rc, err := pcache.NewRedisCache(
			pcache.WithRedisAddr(cfg.Redis.Addr),
			pcache.WithRedisPassword(cfg.Redis.Password),
			pcache.WithRedisDB(cfg.Redis.DB),
			pcache.WithRedisPrefix("priceportal"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		c = pcache.NewLayeredCache(rc, pcache.WithLayeredMemorySize(cfg.Cache.MaxEntries))
		log.Info("cache ready", logger.String("backend", "layered"), logger.String("redis", cfg.Redis.Addr))
	} else {
		c = pcache.NewMemoryCache(
			pcache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
			pcache.WithMemoryDefaultTTL(cfg.Cache.HistoryTTL),
		)
		log.Info("cache ready", logger.String("backend", "memory"))
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			log.Warn("cache close error", logger.Error(err))
		}
	}
	return c, cleanup, nil
}

// ProvidePriceFetcher builds the Yahoo client, wrapped in the cache when one is configured.
func ProvidePriceFetcher(cfg *config.Config, c pcache.Service, m repository.Metrics, log *logger.Logger) repository.PriceFetcher {
	client := yahoo.New(yahoo.Config{
		BaseURL:           cfg.MarketData.BaseURL,
		Timeout:           cfg.MarketData.Timeout,
		RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
		Burst:             cfg.MarketData.Burst,
		UserAgent:         cfg.MarketData.UserAgent,
		RateSymbol:        cfg.MarketData.RateSymbol,
	}, log)
	if c == nil {
		return client
	}
	return icache.NewCachedPriceFetcher(client, c, cfg.Cache.HistoryTTL, cfg.Cache.RateTTL, m, log)
}

func ProvideArtifactStore() repository.ArtifactStore {
	return internalrepo.NewFileArtifactStore()
}

// ProvidePredictorContext loads model and scaler once. Load failures do not
// stop the server; predictions report the model as unavailable instead.
func ProvidePredictorContext(cfg *config.Config, store repository.ArtifactStore, m repository.Metrics, log *logger.Logger) *usecase.PredictorContext {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	engineCfg := inference.EngineConfig{
		Engine:       cfg.Model.Engine,
		ArtifactPath: cfg.Model.ArtifactPath,
		ServingURL:   cfg.Model.ServingURL,
		ServingName:  cfg.Model.ServingName,
		Timeout:      cfg.Model.Timeout,
	}
	load := func(ctx context.Context) (service.InferenceEngine, error) {
		return inference.LoadEngine(ctx, store, engineCfg)
	}
	return usecase.LoadPredictorContext(ctx, store, cfg.Model.ScalerPath, load, m, log)
}

// ProvidePredictionPublisher publishes prediction events to Kafka, or
// discards them when kafka is disabled.
func ProvidePredictionPublisher(cfg *config.Config, log *logger.Logger) (repository.PredictionPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopPredictionPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(!cfg.Kafka.Producer.Sync),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.Topic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			log.Warn("kafka producer close error", logger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvidePredictionArchive connects to ClickHouse and ensures the predictions
// table. Nil when clickhouse is disabled.
func ProvidePredictionArchive(cfg *config.Config, log *logger.Logger) (repository.PredictionArchive, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	archive := internalrepo.NewClickHousePredictionArchive(client, log)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = archive.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	cleanup := func() {
		if err := archive.Close(); err != nil {
			log.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return archive, cleanup, nil
}

// ProvideArchiveConsumer reads prediction events back from Kafka into the
// archive. Needs both kafka and clickhouse; nil otherwise.
func ProvideArchiveConsumer(cfg *config.Config, archive repository.PredictionArchive, m repository.Metrics, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || archive == nil {
		return nil, nil
	}
	handler := usecase.NewPredictionEventsHandler(cfg.Kafka.Topic, archive, m)
	consumer, err := pkgkafka.NewConsumer(handler, log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideTokenService(cfg *config.Config) *auth.TokenService {
	return auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
}

func ProvidePasswordHasher(cfg *config.Config) *auth.PasswordHasher {
	return auth.NewPasswordHasher(cfg.Auth.BcryptCost)
}

// ProvideRateLimiter throttles the credential endpoints per client IP.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Auth.RateLimit.RequestsPerMinute, cfg.Auth.RateLimit.Burst, 10*time.Minute)
}

func ProvideAuthService(
	users repository.UserRepository,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.AuthService {
	return usecase.NewAuthService(users, hasher, tokens, m, log)
}

func ProvidePredictionService(
	cfg *config.Config,
	fetcher repository.PriceFetcher,
	predictor *usecase.PredictorContext,
	publisher repository.PredictionPublisher,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.PredictionService {
	return usecase.NewPredictionService(fetcher, predictor, publisher, m, log, cfg.MarketData.FallbackRate)
}

// ProvideHTTPHandler assembles every route group served by the API.
func ProvideHTTPHandler(
	log *logger.Logger,
	accounts *usecase.AuthService,
	predictions *usecase.PredictionService,
	predictor *usecase.PredictorContext,
	users repository.UserRepository,
	archive repository.PredictionArchive,
	limiter *ratelimit.Limiter,
) xhttp.Handler {
	checks := []api.HealthCheck{
		{Name: "model", Check: func(context.Context) error { return predictor.Err() }},
		{Name: "postgres", Check: users.Health},
	}
	if archive != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: archive.Health})
	}
	return xhttp.Handlers{
		api.NewHealthHandler(checks...),
		api.NewAuthHandler(log, accounts, limiter.Middleware()),
		api.NewPredictHandler(log, predictions, accounts),
	}
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, log *logger.Logger, handler xhttp.Handler, consumer *pkgkafka.Consumer) *server.App {
	return server.New(cfg, log, handler, consumer)
}

func ProvideTrainer(cfg *config.Config) service.Trainer {
	return inference.NewHTTPTrainer(cfg.Training.TrainerURL, cfg.Training.Timeout)
}

// ProvideTrainingPipeline configures the offline pipeline from the training section.
func ProvideTrainingPipeline(
	cfg *config.Config,
	fetcher repository.PriceFetcher,
	trainer service.Trainer,
	store repository.ArtifactStore,
	m repository.Metrics,
	log *logger.Logger,
) (*usecase.TrainingPipeline, error) {
	r, err := cfg.TrainingRange()
	if err != nil {
		return nil, err
	}
	return usecase.NewTrainingPipeline(fetcher, trainer, store, m, log, usecase.TrainingConfig{
		Symbol:     cfg.Training.Symbol,
		Start:      r.Start,
		End:        r.End,
		Epochs:     cfg.Training.Epochs,
		BatchSize:  cfg.Training.BatchSize,
		TrainRatio: cfg.Training.TrainRatio,
		ModelPath:  cfg.Model.ArtifactPath,
		ScalerPath: cfg.Model.ScalerPath,
	}), nil
}

package server

import (
	"context"
	"time"

	"PricePortal/pkg/config"
	xhttp "PricePortal/pkg/http"
	pkgkafka "PricePortal/pkg/kafka"
	"PricePortal/pkg/logger"
)

// App owns the HTTP server and the optional archive consumer.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	handler    xhttp.Handler
	consumer   *pkgkafka.Consumer
	httpServer *xhttp.Server
}

// New creates an App. consumer may be nil.
func New(cfg *config.Config, log *logger.Logger, handler xhttp.Handler, consumer *pkgkafka.Consumer) *App {
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		cfg:      cfg,
		log:      log.Component("app"),
		handler:  handler,
		consumer: consumer,
	}
}

func (a *App) serverOptions() []xhttp.ServerOption {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(!a.cfg.Server.DisableCORS),
		xhttp.WithLogger(a.log),
	}
	if !a.cfg.Metrics.Disabled {
		opts = append(opts, xhttp.WithMetrics(a.cfg.Metrics.Path, a.cfg.Server.SlowThreshold))
	}
	return opts
}

// Run starts the services and blocks until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.httpServer = xhttp.NewServer(a.handler, a.serverOptions()...)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}

	if a.consumer != nil {
		a.consumer.Start(ctx)
		a.log.Info("prediction archive consumer started",
			logger.String("topic", a.cfg.Kafka.Topic),
			logger.String("group", a.cfg.Kafka.Consumer.GroupID),
			logger.Strings("brokers", a.cfg.Kafka.Brokers),
		)
	}

	a.log.Info("priceportal started",
		logger.String("env", a.cfg.Environment),
		logger.Int("port", a.cfg.Server.Port),
		logger.String("engine", a.cfg.Model.Engine),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the HTTP server first so no new events are produced,
// then drains the consumer. Stores are closed by the DI cleanup.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
		firstErr = err
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.log.Info("shutdown complete")
	return firstErr
}

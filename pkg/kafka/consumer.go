package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"PricePortal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, data []byte) error
}

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic and fans messages out to a worker pool.
// A message is done after a successful handle, or after it was parked in
// the dead letter topic. Offsets are committed in order per partition, so
// a failed message without a dead letter topic holds back every later
// commit of its partition until the next restart redelivers it.
type Consumer struct {
	cfg     *ConsumerConfig
	reader  messageReader
	dlq     messageWriter
	handler MessageHandler
	log     *logger.Logger

	msgs     chan kafka.Message
	offsets  *offsetTracker
	commitMu sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:    "priceportal",
		Workers:    1,
		BufferSize: 64,
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 5 * time.Second,
		MinBytes:   1,
		MaxBytes:   10e6,
	}
}

// NewConsumer creates a consumer group reader for handler.Topic().
func NewConsumer(handler MessageHandler, log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    handler.Topic(),
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	var dlq messageWriter
	if cfg.DLQTopic != "" {
		dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}
	return newConsumer(cfg, reader, dlq, handler, log), nil
}

func newConsumer(cfg *ConsumerConfig, r messageReader, dlq messageWriter, h MessageHandler, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	return &Consumer{
		cfg:     cfg,
		reader:  r,
		dlq:     dlq,
		handler: h,
		log:     log.Component("kafka_consumer").With(logger.String("topic", h.Topic())),
		msgs:    make(chan kafka.Message, cfg.BufferSize),
		offsets: newOffsetTracker(),
	}
}

// Start launches the fetch loop and the workers. It returns immediately.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.fetchLoop(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx)
	}
	c.log.Info("consumer started", logger.Int("workers", c.cfg.Workers), logger.String("group", c.cfg.GroupID))
}

// Stop cancels in-flight work and waits for the goroutines until ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		if err := c.reader.Close(); err != nil {
			c.log.Error("close reader", logger.Error(err))
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("close dlq writer", logger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("consumer stopped")
		}
	})
	return stopErr
}

func (c *Consumer) fetchLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.msgs)

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			failures++
			c.log.Warn("fetch message", logger.Error(err), logger.Int("failures", failures))
			if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)) {
				return
			}
			continue
		}
		failures = 0
		c.offsets.track(msg)

		select {
		case c.msgs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.wg.Done()
	for msg := range c.msgs {
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	err := c.handleWithRetry(ctx, msg)
	if ctx.Err() != nil {
		// uncommitted; redelivered after restart
		return
	}

	if err != nil {
		c.log.Error("message failed after retries",
			logger.Error(err),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
		)
		if c.dlq == nil {
			c.log.Warn("partition commits held back",
				logger.Int("partition", msg.Partition),
				logger.Int64("offset", msg.Offset),
			)
			return
		}
		if dlqErr := c.dlq.WriteMessages(ctx, kafka.Message{
			Topic: c.cfg.DLQTopic,
			Key:   msg.Key,
			Value: msg.Value,
			Headers: []kafka.Header{
				{Key: "source_topic", Value: []byte(msg.Topic)},
				{Key: "error", Value: []byte(err.Error())},
			},
		}); dlqErr != nil {
			c.log.Error("write to dlq", logger.Error(dlqErr), logger.String("dlq_topic", c.cfg.DLQTopic))
			return
		}
	}

	c.commit(ctx, msg)
}

// commit marks msg done and commits the contiguous done prefix of its
// partition. Commits are serialized so offsets never move backwards.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	upTo, ok := c.offsets.complete(msg)
	if !ok {
		return
	}
	if err := c.reader.CommitMessages(ctx, upTo); err != nil {
		c.log.Error("commit offset", logger.Error(err),
			logger.Int("partition", upTo.Partition),
			logger.Int64("offset", upTo.Offset),
		)
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(ctx, msg.Value)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		c.log.Debug("retrying message", logger.Error(err), logger.Int("attempt", attempt))
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) safeHandle(ctx context.Context, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return c.handler.Handle(ctx, data)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

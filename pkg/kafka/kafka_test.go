package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PricePortal/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.committed))
	for _, m := range r.committed {
		out = append(out, m.Offset)
	}
	return out
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string { return h.topic }

func (h funcHandler) Handle(_ context.Context, data []byte) error { return h.fn(data) }

func testConsumerConfig() *ConsumerConfig {
	cfg := defaultConsumerConfig()
	cfg.RetryMax = 2
	cfg.BackoffMin = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	return cfg
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)

	err := p.Publish(context.Background(), "portal.predictions", []byte("AAPL"), map[string]string{"ticker": "AAPL"})
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "portal.predictions", msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), msgs[0].Key)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, string(msgs[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom})

	err := p.Publish(context.Background(), "t", nil, "raw")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "events", Value: []byte("a"), Offset: 1}}}
	var calls int32
	h := funcHandler{topic: "events", fn: func([]byte) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}}

	c := newConsumer(testConsumerConfig(), r, nil, h, logger.Nop())
	c.Start(context.Background())

	require.Eventually(t, func() bool { return r.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, r.closed)
}

func TestConsumer_ExhaustedRetriesGoToDLQ(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "events", Key: []byte("k"), Value: []byte("bad"), Offset: 7}}}
	dlq := &fakeWriter{}
	var calls int32
	h := funcHandler{topic: "events", fn: func([]byte) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("poison")
	}}

	cfg := testConsumerConfig()
	cfg.DLQTopic = "events.dlq"
	c := newConsumer(cfg, r, dlq, h, logger.Nop())
	c.Start(context.Background())

	require.Eventually(t, func() bool { return r.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	parked := dlq.written()
	require.Len(t, parked, 1)
	assert.Equal(t, "events.dlq", parked[0].Topic)
	assert.Equal(t, []byte("bad"), parked[0].Value)
	assert.Equal(t, "source_topic", parked[0].Headers[0].Key)
	assert.Equal(t, []byte("events"), parked[0].Headers[0].Value)
	assert.True(t, dlq.closed)
}

func TestConsumer_FailureWithoutDLQIsNotCommitted(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "events", Value: []byte("x")}}}
	var calls int32
	h := funcHandler{topic: "events", fn: func([]byte) error {
		atomic.AddInt32(&calls, 1)
		panic("handler blew up")
	}}

	c := newConsumer(testConsumerConfig(), r, nil, h, logger.Nop())
	c.Start(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, 0, r.commits())
}

func TestOffsetTracker_CommitsContiguousPrefix(t *testing.T) {
	tr := newOffsetTracker()
	for _, off := range []int64{5, 6, 7} {
		tr.track(kafka.Message{Partition: 0, Offset: off})
	}
	tr.track(kafka.Message{Partition: 1, Offset: 3})

	_, ok := tr.complete(kafka.Message{Partition: 0, Offset: 6})
	assert.False(t, ok, "offset 5 is still in flight")

	upTo, ok := tr.complete(kafka.Message{Partition: 1, Offset: 3})
	require.True(t, ok)
	assert.Equal(t, int64(3), upTo.Offset)

	upTo, ok = tr.complete(kafka.Message{Partition: 0, Offset: 5})
	require.True(t, ok)
	assert.Equal(t, int64(6), upTo.Offset)

	upTo, ok = tr.complete(kafka.Message{Partition: 0, Offset: 7})
	require.True(t, ok)
	assert.Equal(t, int64(7), upTo.Offset)
}

func TestConsumer_FailedMessageHoldsBackLaterCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "events", Value: []byte("bad"), Offset: 5},
		{Topic: "events", Value: []byte("ok"), Offset: 6},
	}}
	var handled int32
	h := funcHandler{topic: "events", fn: func(b []byte) error {
		atomic.AddInt32(&handled, 1)
		if string(b) == "bad" {
			return errors.New("archive down")
		}
		return nil
	}}

	cfg := testConsumerConfig()
	cfg.RetryMax = 0
	cfg.Workers = 2
	c := newConsumer(cfg, r, nil, h, logger.Nop())
	c.Start(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&handled) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))

	assert.Empty(t, r.committedOffsets())
}

func TestConsumer_CommitsWaitForEarlierOffsets(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Topic: "events", Value: []byte("slow"), Offset: 5},
		{Topic: "events", Value: []byte("fast"), Offset: 6},
	}}
	release := make(chan struct{})
	fastDone := make(chan struct{})
	h := funcHandler{topic: "events", fn: func(b []byte) error {
		if string(b) == "slow" {
			<-release
			return nil
		}
		close(fastDone)
		return nil
	}}

	cfg := testConsumerConfig()
	cfg.Workers = 2
	c := newConsumer(cfg, r, nil, h, logger.Nop())
	c.Start(context.Background())

	select {
	case <-fastDone:
	case <-time.After(time.Second):
		t.Fatal("offset 6 was not handled")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.committedOffsets(), "offset 6 must not be committed while 5 is in flight")

	close(release)
	require.Eventually(t, func() bool { return r.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []int64{6}, r.committedOffsets())
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
}

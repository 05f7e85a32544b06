package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	pkgkafka "PricePortal/pkg/kafka"
)

// PredictionEventsHandler archives prediction events read from Kafka.
type PredictionEventsHandler struct {
	topic   string
	archive drepo.PredictionArchive
	metrics drepo.Metrics
	now     func() time.Time
}

func NewPredictionEventsHandler(topic string, archive drepo.PredictionArchive, metrics drepo.Metrics) *PredictionEventsHandler {
	return &PredictionEventsHandler{topic: topic, archive: archive, metrics: metrics, now: time.Now}
}

func (h *PredictionEventsHandler) Topic() string { return h.topic }

func (h *PredictionEventsHandler) Handle(ctx context.Context, b []byte) error {
	var e models.PredictionEvent
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordEvent("archive", "invalid")
		return fmt.Errorf("decode prediction event: %w", err)
	}
	if e.ID == "" || e.Ticker == "" {
		h.metrics.RecordEvent("archive", "invalid")
		return fmt.Errorf("prediction event missing id or ticker")
	}
	if !e.CreatedAt.IsZero() {
		h.metrics.RecordLatency("event_archive_lag", h.now().Sub(e.CreatedAt).Seconds())
	}

	start := h.now()
	err := h.archive.StoreBatch(ctx, []*models.PredictionEvent{&e})
	h.metrics.RecordLatency("archive_insert", h.now().Sub(start).Seconds())
	if err != nil {
		h.metrics.RecordEvent("archive", "error")
		return err
	}
	h.metrics.RecordEvent("archive", "ok")
	return nil
}

var _ pkgkafka.MessageHandler = (*PredictionEventsHandler)(nil)

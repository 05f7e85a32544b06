package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"PricePortal/internal/domain/models"
	domrepo "PricePortal/internal/domain/repository"
	pkgch "PricePortal/pkg/clickhouse"
	applogger "PricePortal/pkg/logger"
)

const predictionsTable = "predictions"

// archiveChunk caps rows per INSERT statement.
const archiveChunk = 1000

// PredictionSchema creates the archive table. ReplacingMergeTree collapses
// redelivered events with the same id.
var PredictionSchema = []string{
	`CREATE TABLE IF NOT EXISTS predictions (
		id              String,
		ticker          LowCardinality(String),
		username        String,
		predicted_price Float64,
		last_close      Float64,
		trend           LowCardinality(String),
		confidence      Float64,
		rate            Float64,
		rate_fallback   UInt8,
		engine          LowCardinality(String),
		created_at      DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree
	ORDER BY (ticker, created_at, id)`,
}

// ClickHousePredictionArchive appends prediction events to ClickHouse.
type ClickHousePredictionArchive struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewClickHousePredictionArchive(client *pkgch.Client, l *applogger.Logger) domrepo.PredictionArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHousePredictionArchive{client: client, db: client.DB(), l: l.Component("prediction_archive")}
}

func (a *ClickHousePredictionArchive) Init(ctx context.Context) error {
	return a.client.InitSchema(ctx, PredictionSchema)
}

// StoreBatch inserts events in chunks; nil and id-less events are skipped.
func (a *ClickHousePredictionArchive) StoreBatch(ctx context.Context, events []*models.PredictionEvent) error {
	for start := 0; start < len(events); start += archiveChunk {
		end := start + archiveChunk
		if end > len(events) {
			end = len(events)
		}
		q, args := buildPredictionInsert(predictionsTable, events[start:end])
		if q == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			a.l.Error("insert predictions", applogger.Int("rows", len(args)/predictionColumns), applogger.Error(err))
			return fmt.Errorf("store predictions: %w", err)
		}
	}
	return nil
}

func (a *ClickHousePredictionArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *ClickHousePredictionArchive) Close() error {
	return a.client.Close()
}

const predictionColumns = 11

func buildPredictionInsert(table string, events []*models.PredictionEvent) (string, []interface{}) {
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*predictionColumns)
	for _, e := range events {
		if e == nil || e.ID == "" {
			continue
		}
		var fallback uint8
		if e.RateFallback {
			fallback = 1
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.ID,
			e.Ticker,
			e.Username,
			e.PredictedPrice,
			e.LastClose,
			string(e.Trend),
			e.Confidence,
			e.Rate,
			fallback,
			e.Engine,
			e.CreatedAt.UTC(),
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (id, ticker, username, predicted_price, last_close, trend, confidence, rate, rate_fallback, engine, created_at) VALUES %s",
		table, strings.Join(values, ","),
	)
	return q, args
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CoinRoute/internal/domain/models"
	"CoinRoute/internal/domain/repository"
	pkgkafka "CoinRoute/pkg/kafka"
)

// Schema returns the idempotent DDL for the order audit table.
func Schema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts          DateTime64(3),
	order_id    String,
	request_id  String,
	signal_id   String,
	exchange    LowCardinality(String),
	symbol      LowCardinality(String),
	side        LowCardinality(String),
	type        LowCardinality(String),
	quantity    Float64,
	filled_qty  Float64,
	avg_price   Float64,
	status      LowCardinality(String)
) ENGINE = MergeTree()
ORDER BY (symbol, ts)`, table)}
}

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, table string) repository.Storage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) StoreOrder(ctx context.Context, r *models.OrderResult) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, order_id, request_id, signal_id, exchange, symbol, side, type, quantity, filled_qty, avg_price, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		time.UnixMilli(r.SubmittedAt),
		r.OrderID,
		r.RequestID,
		r.SignalID,
		r.Exchange,
		r.Symbol,
		string(r.Side),
		string(r.Type),
		r.Quantity,
		r.FilledQty,
		r.AvgPrice,
		string(r.Status),
	)
	return err
}

func (s *ClickHouseStorage) QueryOrders(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.OrderResult, error) {
	q := fmt.Sprintf("SELECT ts, order_id, request_id, signal_id, exchange, symbol, side, type, quantity, filled_qty, avg_price, status FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.OrderResult
	for rows.Next() {
		var r models.OrderResult
		var ts time.Time
		var side, otype, status string
		if err := rows.Scan(&ts, &r.OrderID, &r.RequestID, &r.SignalID, &r.Exchange,
			&r.Symbol, &side, &otype, &r.Quantity, &r.FilledQty, &r.AvgPrice, &status); err != nil {
			return nil, err
		}
		r.SubmittedAt = ts.UnixMilli()
		r.UpdatedAt = r.SubmittedAt
		r.Side = models.Side(side)
		r.Type = models.OrderType(otype)
		r.Status = models.OrderStatus(status)
		orders = append(orders, &r)
	}
	return orders, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // pool owned by pkg/clickhouse
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishOrder(ctx context.Context, r *models.OrderResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), map[string]interface{}{
		"event":      "order",
		"order_id":   r.OrderID,
		"request_id": r.RequestID,
		"signal_id":  r.SignalID,
		"exchange":   r.Exchange,
		"symbol":     r.Symbol,
		"side":       r.Side,
		"type":       r.Type,
		"quantity":   r.Quantity,
		"filled_qty": r.FilledQty,
		"avg_price":  r.AvgPrice,
		"status":     r.Status,
		"ts":         r.SubmittedAt,
	})
}

func (p *KafkaPublisher) PublishRejection(ctx context.Context, s *models.RankedSignal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Signal.Symbol), map[string]interface{}{
		"event":     "rejection",
		"signal_id": s.Signal.ID,
		"symbol":    s.Signal.Symbol,
		"side":      s.Signal.Side,
		"priority":  s.Priority,
		"reasons":   s.Reasons,
		"ts":        s.ReceivedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher satisfies Publisher when no backend is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrder(context.Context, *models.OrderResult) error      { return nil }
func (NoopPublisher) PublishRejection(context.Context, *models.RankedSignal) error { return nil }
func (NoopPublisher) Close() error                                                 { return nil }

// NoopStorage satisfies Storage when no backend is configured.
type NoopStorage struct{}

func (NoopStorage) StoreOrder(context.Context, *models.OrderResult) error { return nil }
func (NoopStorage) QueryOrders(context.Context, string, time.Time, time.Time, int) ([]*models.OrderResult, error) {
	return nil, nil
}
func (NoopStorage) Health(context.Context) error { return nil }
func (NoopStorage) Close() error                 { return nil }

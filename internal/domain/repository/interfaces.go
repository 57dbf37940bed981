package repository

import (
	"context"
	"time"

	"CoinRoute/internal/domain/models"
)

// ExchangeAdapter is the uniform surface over one exchange's REST API.
// Implementations may fail with exchange-specific errors; the core only
// inspects them through the fault classifier.
type ExchangeAdapter interface {
	Name() string
	Authenticate(ctx context.Context) error
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	GetBalances(ctx context.Context) ([]models.Balance, error)
	CreateOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	ValidateSymbol(ctx context.Context, symbol string) (bool, error)
	GetExchangeInfo(ctx context.Context) (*models.ExchangeInfo, error)
}

// SignalStream delivers signals pushed by an external strategy engine.
type SignalStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Signal, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher fans order lifecycle events out to an external bus.
type Publisher interface {
	PublishOrder(ctx context.Context, r *models.OrderResult) error
	PublishRejection(ctx context.Context, s *models.RankedSignal) error
	Close() error
}

// Storage keeps the order audit trail.
type Storage interface {
	StoreOrder(ctx context.Context, r *models.OrderResult) error
	QueryOrders(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.OrderResult, error)
	Health(ctx context.Context) error
	Close() error
}

// MarketEstimator supplies advisory volatility/liquidity figures for the
// risk gate's market checks.
type MarketEstimator interface {
	Estimate(ctx context.Context, symbol string) (*models.MarketEstimate, error)
}

// Metrics records operational counters; implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordOrder(exchange, symbol string, status string)
	RecordRetry(exchange string, category string)
	RecordFailover(from, to string)
	RecordRejection(stage, reason string)
	RecordRateLimitWait(exchange string, seconds float64)
	RecordQueueDepth(depth int)
	RecordCache(hit bool)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}

// Clock abstracts wall time so window pruning and backoff are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a func to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// WallClock is the production clock.
var WallClock Clock = ClockFunc(time.Now)

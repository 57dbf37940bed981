package usecase

import (
	"context"
	"sync"
	"time"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// nopMetrics satisfies the metrics interface without recording anything.
type nopMetrics struct{}

func (nopMetrics) RecordOrder(string, string, string)    {}
func (nopMetrics) RecordRetry(string, string)            {}
func (nopMetrics) RecordFailover(string, string)         {}
func (nopMetrics) RecordRejection(string, string)        {}
func (nopMetrics) RecordRateLimitWait(string, float64)   {}
func (nopMetrics) RecordQueueDepth(int)                  {}
func (nopMetrics) RecordCache(bool)                      {}
func (nopMetrics) RecordLatency(string, float64)         {}
func (nopMetrics) RecordError(string)                    {}

type stubMarket struct {
	est *models.MarketEstimate
	err error
}

func (m *stubMarket) Estimate(context.Context, string) (*models.MarketEstimate, error) {
	return m.est, m.err
}

// scriptedAdapter replays a fixed sequence of CreateOrder outcomes.
type scriptedAdapter struct {
	name    string
	mu      sync.Mutex
	errs    []error // consumed in order; nil means success
	calls   int
	symbols map[string]bool // nil means everything is supported
	ticker  *models.Ticker
	tickErr error
	ticks   int
}

var _ domrepo.ExchangeAdapter = (*scriptedAdapter)(nil)

func (a *scriptedAdapter) Name() string                        { return a.name }
func (a *scriptedAdapter) Authenticate(context.Context) error  { return nil }

func (a *scriptedAdapter) GetTicker(_ context.Context, symbol string) (*models.Ticker, error) {
	a.mu.Lock()
	a.ticks++
	a.mu.Unlock()
	if a.tickErr != nil {
		return nil, a.tickErr
	}
	if a.ticker != nil {
		return a.ticker, nil
	}
	return &models.Ticker{Symbol: symbol, Bid: 99, Ask: 101, Last: 100}, nil
}

func (a *scriptedAdapter) GetBalances(context.Context) ([]models.Balance, error) {
	return []models.Balance{{Asset: "USDT", Free: 1000}}, nil
}

func (a *scriptedAdapter) CreateOrder(_ context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.OrderResult{
		OrderID:   a.name + "-1",
		Exchange:  a.name,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		FilledQty: req.Quantity,
		Status:    models.OrderStatusFilled,
		RequestID: req.RequestID,
	}, nil
}

func (a *scriptedAdapter) CancelOrder(context.Context, string, string) error { return nil }

func (a *scriptedAdapter) ValidateSymbol(_ context.Context, symbol string) (bool, error) {
	if a.symbols == nil {
		return true, nil
	}
	return a.symbols[symbol], nil
}

func (a *scriptedAdapter) GetExchangeInfo(context.Context) (*models.ExchangeInfo, error) {
	return &models.ExchangeInfo{Name: a.name}, nil
}

func (a *scriptedAdapter) orderCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *scriptedAdapter) tickerCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ticks
}

func buySignal() *models.Signal {
	return &models.Signal{
		ID:         "sig-1",
		Symbol:     "BTC/USDT",
		Side:       models.SideBuy,
		Entry:      50000,
		StopLoss:   49000,
		TakeProfit: 53000,
		Confidence: 80,
		Strategy:   "breakout",
		Timeframe:  "1h",
	}
}

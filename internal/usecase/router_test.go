package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
	"CoinRoute/internal/service/cache"
	"CoinRoute/internal/service/faults"
	"CoinRoute/internal/service/ratelimit"
	"CoinRoute/pkg/logger"
)

func newRouter(t *testing.T, primary, fallback *scriptedAdapter) *ExchangeRouter {
	t.Helper()
	adapters := map[string]domrepo.ExchangeAdapter{primary.name: primary}
	cfg := RouterConfig{Primary: primary.name, CacheTTL: 30 * time.Second}
	if fallback != nil {
		adapters[fallback.name] = fallback
		cfg.Fallbacks = []string{fallback.name}
	}
	classifier := faults.NewClassifier(faults.WithPolicy(faults.Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}))
	r, err := NewExchangeRouter(
		cfg, adapters,
		ratelimit.New(),
		classifier,
		cache.NewMemory(),
		logger.Nop(),
		nopMetrics{},
		domrepo.WallClock,
	)
	require.NoError(t, err)
	return r
}

func marketOrder() *models.OrderRequest {
	return &models.OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     models.SideBuy,
		Type:     models.OrderMarket,
		Quantity: 0.5,
	}
}

func TestRouterSubmitsOnPrimary(t *testing.T) {
	primary := &scriptedAdapter{name: "binance"}
	r := newRouter(t, primary, nil)

	res, err := r.SubmitOrder(context.Background(), marketOrder())
	require.NoError(t, err)
	assert.Equal(t, "binance", res.Exchange)
	assert.Equal(t, models.OrderStatusFilled, res.Status)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, 1, primary.orderCalls())
}

func TestRouterRetriesTransientFault(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", errs: []error{
		errors.New("connection timeout"),
		errors.New("connection timeout"),
		nil,
	}}
	r := newRouter(t, primary, nil)

	res, err := r.SubmitOrder(context.Background(), marketOrder())
	require.NoError(t, err)
	assert.Equal(t, "binance", res.Exchange)
	assert.Equal(t, 3, primary.orderCalls())
}

func TestRouterFailsOverOnTerminalFault(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", errs: []error{
		errors.New("unauthorized"),
	}}
	fallback := &scriptedAdapter{name: "kraken"}
	r := newRouter(t, primary, fallback)

	res, err := r.SubmitOrder(context.Background(), marketOrder())
	require.NoError(t, err)
	assert.Equal(t, "kraken", res.Exchange, "result must be attributed to the exchange that filled it")
	assert.Equal(t, 1, primary.orderCalls())
	assert.Equal(t, 1, fallback.orderCalls())
}

func TestRouterSurfacesFirstErrorWithAttemptCount(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", errs: []error{
		errors.New("unauthorized"),
	}}
	fallback := &scriptedAdapter{name: "kraken", errs: []error{
		errors.New("forbidden"),
	}}
	r := newRouter(t, primary, fallback)

	_, err := r.SubmitOrder(context.Background(), marketOrder())
	require.Error(t, err)

	var exErr *models.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "binance", exErr.Exchange, "the first exchange's error is surfaced")
	assert.Equal(t, models.ErrAuthentication, exErr.Category)
	assert.Equal(t, 2, exErr.Attempts)
}

func TestRouterExhaustsRetryBudgetBeforeFailover(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", errs: []error{
		errors.New("connection timeout"),
		errors.New("connection timeout"),
		errors.New("connection timeout"),
		errors.New("connection timeout"),
	}}
	fallback := &scriptedAdapter{name: "kraken"}
	r := newRouter(t, primary, fallback)

	res, err := r.SubmitOrder(context.Background(), marketOrder())
	require.NoError(t, err)
	assert.Equal(t, "kraken", res.Exchange)
	// initial attempt plus the three retries of the budget
	assert.Equal(t, 4, primary.orderCalls())
}

func TestRouterSkipsUnsupportedSymbol(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", symbols: map[string]bool{"ETH/USDT": true}}
	fallback := &scriptedAdapter{name: "kraken"}
	r := newRouter(t, primary, fallback)

	res, err := r.SubmitOrder(context.Background(), marketOrder())
	require.NoError(t, err)
	assert.Equal(t, "kraken", res.Exchange)
	assert.Zero(t, primary.orderCalls())
}

func TestRouterRejectsMalformedOrderWithoutDispatch(t *testing.T) {
	primary := &scriptedAdapter{name: "binance"}
	r := newRouter(t, primary, nil)

	req := marketOrder()
	req.Quantity = 0

	_, err := r.SubmitOrder(context.Background(), req)
	require.Error(t, err)

	var exErr *models.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, models.ErrValidation, exErr.Category)
	assert.Zero(t, primary.orderCalls())
}

func TestRouterEnforcesOrderSizeBounds(t *testing.T) {
	primary := &scriptedAdapter{name: "binance"}
	r := newRouter(t, primary, nil)
	r.cfg.MinOrderSize = 0.001
	r.cfg.MaxOrderSize = 10

	req := marketOrder()
	req.Quantity = 50

	_, err := r.SubmitOrder(context.Background(), req)
	require.Error(t, err)
	var exErr *models.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Contains(t, exErr.Message, "maximum order size")
	assert.Zero(t, primary.orderCalls())
}

func TestRouterTickerServedFromCache(t *testing.T) {
	primary := &scriptedAdapter{name: "binance"}
	r := newRouter(t, primary, nil)

	first, err := r.GetTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	second, err := r.GetTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, first.Last, second.Last)
	assert.Equal(t, 1, primary.tickerCalls(), "second read must hit the cache")
}

func TestRouterTickerFailsOver(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", tickErr: errors.New("unauthorized")}
	fallback := &scriptedAdapter{name: "kraken", ticker: &models.Ticker{Symbol: "BTC/USDT", Last: 42}}
	r := newRouter(t, primary, fallback)

	tk, err := r.GetTicker(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.InDelta(t, 42, tk.Last, 1e-9)
}

func TestRouterCancelUnknownExchange(t *testing.T) {
	primary := &scriptedAdapter{name: "binance"}
	r := newRouter(t, primary, nil)

	err := r.CancelOrder(context.Background(), "bitfinex", "BTC/USDT", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRouterHonorsContextCancellation(t *testing.T) {
	primary := &scriptedAdapter{name: "binance", errs: []error{
		errors.New("connection timeout"),
		errors.New("connection timeout"),
	}}
	fallback := &scriptedAdapter{name: "kraken"}
	r := newRouter(t, primary, fallback)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.SubmitOrder(ctx, marketOrder())
	require.Error(t, err)
	assert.LessOrEqual(t, primary.orderCalls(), 1)
	assert.Zero(t, fallback.orderCalls())
}

func TestRouterExchangesReturnsSequence(t *testing.T) {
	primary := &scriptedAdapter{name: "binance"}
	fallback := &scriptedAdapter{name: "kraken"}
	r := newRouter(t, primary, fallback)

	assert.Equal(t, []string{"binance", "kraken"}, r.Exchanges())
}

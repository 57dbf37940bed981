package paper

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
	"CoinRoute/pkg/logger"
)

// Adapter is an in-memory exchange for paper trading. Orders fill
// immediately at the simulated mid price and balances are settled
// locally, so the whole pipeline can run without touching a venue.
type Adapter struct {
	log   *logger.Logger
	clock domrepo.Clock

	mu       sync.Mutex
	prices   map[string]float64
	balances map[string]float64
	orders   map[string]*models.OrderResult
}

func New(log *logger.Logger, clock domrepo.Clock) *Adapter {
	return &Adapter{
		log:   log,
		clock: clock,
		prices: map[string]float64{
			"BTC/USDT": 60000,
			"ETH/USDT": 3000,
			"SOL/USDT": 150,
		},
		balances: map[string]float64{"USDT": 100000},
		orders:   make(map[string]*models.OrderResult),
	}
}

func (a *Adapter) Name() string { return "paper" }

func (a *Adapter) Authenticate(context.Context) error { return nil }

// SetPrice pins the simulated price for a symbol.
func (a *Adapter) SetPrice(symbol string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[normalize(symbol)] = price
}

func (a *Adapter) GetTicker(_ context.Context, symbol string) (*models.Ticker, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mid, ok := a.prices[normalize(symbol)]
	if !ok {
		return nil, fmt.Errorf("paper: unknown symbol %s", symbol)
	}
	// a small random walk keeps repeated reads from being identical
	mid *= 1 + (rand.Float64()-0.5)*0.001
	a.prices[normalize(symbol)] = mid
	spread := mid * 0.0005
	return &models.Ticker{
		Symbol:    symbol,
		Bid:       mid - spread,
		Ask:       mid + spread,
		Last:      mid,
		Volume24h: 1_000_000,
		Timestamp: models.NowMillis(a.clock.Now()),
	}, nil
}

func (a *Adapter) GetBalances(context.Context) ([]models.Balance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Balance, 0, len(a.balances))
	for asset, free := range a.balances {
		out = append(out, models.Balance{Asset: asset, Free: free})
	}
	return out, nil
}

func (a *Adapter) CreateOrder(_ context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	symbol := normalize(req.Symbol)
	mid, ok := a.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("paper: unknown symbol %s", req.Symbol)
	}

	price := req.Price
	if req.Type == models.OrderMarket || price <= 0 {
		price = mid
	}

	sig := models.Signal{Symbol: req.Symbol}
	base := sig.BaseAsset()
	quote := price * req.Quantity
	if req.Side == models.SideBuy {
		if a.balances["USDT"] < quote {
			return nil, fmt.Errorf("insufficient balance: need %.2f USDT", quote)
		}
		a.balances["USDT"] -= quote
		a.balances[base] += req.Quantity
	} else {
		if a.balances[base] < req.Quantity {
			return nil, fmt.Errorf("insufficient balance: need %.8f %s", req.Quantity, base)
		}
		a.balances[base] -= req.Quantity
		a.balances["USDT"] += quote
	}

	now := models.NowMillis(a.clock.Now())
	res := &models.OrderResult{
		OrderID:     uuid.NewString(),
		Exchange:    a.Name(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		FilledQty:   req.Quantity,
		AvgPrice:    price,
		Status:      models.OrderStatusFilled,
		SubmittedAt: now,
		UpdatedAt:   now,
		SignalID:    req.SignalID,
		RequestID:   req.RequestID,
	}
	a.orders[res.OrderID] = res
	a.log.Debug("paper fill",
		logger.String("symbol", req.Symbol),
		logger.Float64("price", price),
		logger.Float64("qty", req.Quantity))
	return res, nil
}

func (a *Adapter) CancelOrder(_ context.Context, _ string, orderID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	res, ok := a.orders[orderID]
	if !ok {
		return fmt.Errorf("paper: unknown order %s", orderID)
	}
	if res.Status == models.OrderStatusFilled {
		return fmt.Errorf("paper: order %s already filled", orderID)
	}
	res.Status = models.OrderStatusCanceled
	res.UpdatedAt = models.NowMillis(a.clock.Now())
	return nil
}

func (a *Adapter) ValidateSymbol(_ context.Context, symbol string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.prices[normalize(symbol)]
	return ok, nil
}

func (a *Adapter) GetExchangeInfo(context.Context) (*models.ExchangeInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pairs := make([]string, 0, len(a.prices))
	for s := range a.prices {
		pairs = append(pairs, s)
	}
	return &models.ExchangeInfo{Name: a.Name(), SupportedPairs: pairs}, nil
}

func normalize(symbol string) string {
	s := strings.ToUpper(symbol)
	if !strings.Contains(s, "/") {
		sig := models.Signal{Symbol: s}
		base := sig.BaseAsset()
		if base != s {
			return base + "/" + s[len(base):]
		}
	}
	return strings.NewReplacer("-", "/", "_", "/").Replace(s)
}

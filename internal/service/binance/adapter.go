package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"

	"CoinRoute/internal/domain/models"
	"CoinRoute/pkg/logger"
)

// Adapter wraps the Binance spot API behind the exchange surface the
// router expects. Symbol info is fetched once and cached for the
// adapter's lifetime.
type Adapter struct {
	api *binance.Client
	log *logger.Logger

	mu   sync.RWMutex
	info map[string]binance.Symbol
}

type Config struct {
	APIKey    string
	APISecret string
	Sandbox   bool
}

func New(cfg Config, log *logger.Logger) *Adapter {
	binance.UseTestnet = cfg.Sandbox
	return &Adapter{
		api:  binance.NewClient(cfg.APIKey, cfg.APISecret),
		log:  log,
		info: make(map[string]binance.Symbol),
	}
}

func (a *Adapter) Name() string { return "binance" }

// Authenticate verifies the credentials and warms the symbol table.
func (a *Adapter) Authenticate(ctx context.Context) error {
	if _, err := a.api.NewGetAccountService().Do(ctx); err != nil {
		return fmt.Errorf("binance authenticate: %w", err)
	}
	return a.loadInfo(ctx)
}

func (a *Adapter) loadInfo(ctx context.Context) error {
	info, err := a.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binance exchange info: %w", err)
	}
	a.mu.Lock()
	for _, s := range info.Symbols {
		a.info[s.Symbol] = s
	}
	a.mu.Unlock()
	a.log.Info("exchange info loaded",
		logger.String("exchange", "binance"),
		logger.Int("pairs", len(info.Symbols)))
	return nil
}

func (a *Adapter) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	pair := Pair(symbol)
	stats, err := a.api.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance ticker %s: %w", pair, err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("binance ticker %s: empty response", pair)
	}
	s := stats[0]
	return &models.Ticker{
		Symbol:    symbol,
		Bid:       parseFloat(s.BidPrice),
		Ask:       parseFloat(s.AskPrice),
		Last:      parseFloat(s.LastPrice),
		Volume24h: parseFloat(s.QuoteVolume),
		Timestamp: s.CloseTime,
	}, nil
}

func (a *Adapter) GetBalances(ctx context.Context) ([]models.Balance, error) {
	account, err := a.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance balances: %w", err)
	}
	out := make([]models.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		out = append(out, models.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return out, nil
}

func (a *Adapter) CreateOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	pair := Pair(req.Symbol)
	svc := a.api.NewCreateOrderService().
		Symbol(pair).
		Side(sideOf(req.Side)).
		Type(typeOf(req.Type)).
		Quantity(formatQty(req.Quantity, a.lotPrecision(pair))).
		NewClientOrderID(req.RequestID)
	if req.Type != models.OrderMarket {
		svc = svc.TimeInForce(tifOf(req.TimeInForce))
	}
	if req.Price > 0 {
		svc = svc.Price(strconv.FormatFloat(req.Price, 'f', -1, 64))
	}
	if req.StopPrice > 0 {
		svc = svc.StopPrice(strconv.FormatFloat(req.StopPrice, 'f', -1, 64))
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance order %s: %w", pair, err)
	}

	filled := parseFloat(resp.ExecutedQuantity)
	return &models.OrderResult{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Exchange:    a.Name(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		FilledQty:   filled,
		AvgPrice:    fillPrice(resp.Fills),
		Status:      statusOf(resp.Status),
		SubmittedAt: resp.TransactTime,
		UpdatedAt:   resp.TransactTime,
		SignalID:    req.SignalID,
		RequestID:   req.RequestID,
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("binance order id %q: %w", orderID, err)
	}
	if _, err := a.api.NewCancelOrderService().Symbol(Pair(symbol)).OrderID(id).Do(ctx); err != nil {
		return fmt.Errorf("binance cancel %s: %w", orderID, err)
	}
	return nil
}

func (a *Adapter) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	a.mu.RLock()
	empty := len(a.info) == 0
	a.mu.RUnlock()
	if empty {
		if err := a.loadInfo(ctx); err != nil {
			return false, err
		}
	}
	a.mu.RLock()
	_, ok := a.info[Pair(symbol)]
	a.mu.RUnlock()
	return ok, nil
}

func (a *Adapter) GetExchangeInfo(ctx context.Context) (*models.ExchangeInfo, error) {
	a.mu.RLock()
	empty := len(a.info) == 0
	a.mu.RUnlock()
	if empty {
		if err := a.loadInfo(ctx); err != nil {
			return nil, err
		}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	pairs := make([]string, 0, len(a.info))
	for s := range a.info {
		pairs = append(pairs, s)
	}
	return &models.ExchangeInfo{
		Name:           a.Name(),
		SupportedPairs: pairs,
		MakerFee:       0.001,
		TakerFee:       0.001,
	}, nil
}

func (a *Adapter) lotPrecision(pair string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.info[pair]; ok {
		return s.BaseAssetPrecision
	}
	return 8
}

// Pair converts a BASE/QUOTE symbol to binance's concatenated form.
func Pair(symbol string) string {
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(strings.ToUpper(symbol))
}

func sideOf(s models.Side) binance.SideType {
	if s == models.SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func typeOf(t models.OrderType) binance.OrderType {
	switch t {
	case models.OrderLimit:
		return binance.OrderTypeLimit
	case models.OrderStopLoss:
		return binance.OrderTypeStopLoss
	case models.OrderStopLossLimit:
		return binance.OrderTypeStopLossLimit
	case models.OrderTakeProfit:
		return binance.OrderTypeTakeProfit
	default:
		return binance.OrderTypeMarket
	}
}

func tifOf(t models.TimeInForce) binance.TimeInForceType {
	switch t {
	case models.IOC:
		return binance.TimeInForceTypeIOC
	case models.FOK:
		return binance.TimeInForceTypeFOK
	default:
		return binance.TimeInForceTypeGTC
	}
}

func statusOf(s binance.OrderStatusType) models.OrderStatus {
	switch s {
	case binance.OrderStatusTypeFilled:
		return models.OrderStatusFilled
	case binance.OrderStatusTypePartiallyFilled:
		return models.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeCanceled:
		return models.OrderStatusCanceled
	case binance.OrderStatusTypeRejected:
		return models.OrderStatusRejected
	default:
		return models.OrderStatusNew
	}
}

// fillPrice computes the volume-weighted fill price.
func fillPrice(fills []*binance.Fill) float64 {
	price, qty := 0.0, 0.0
	for _, f := range fills {
		if f == nil {
			continue
		}
		p := parseFloat(f.Price)
		q := parseFloat(f.Quantity)
		price += p * q
		qty += q
	}
	if qty == 0 {
		return 0
	}
	return price / qty
}

func formatQty(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

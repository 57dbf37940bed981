package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	krakenapi "github.com/beldur/kraken-go-api-client"

	"CoinRoute/internal/domain/models"
	"CoinRoute/pkg/logger"
)

// Adapter wraps the Kraken REST API. The underlying client is not
// context aware, so calls run in a goroutine and respect cancellation
// from the outside.
type Adapter struct {
	api *krakenapi.KrakenAPI
	log *logger.Logger

	mu   sync.RWMutex
	info map[string]krakenapi.AssetPairInfo // keyed by altname
}

type Config struct {
	APIKey    string
	APISecret string
}

func New(cfg Config, log *logger.Logger) *Adapter {
	return &Adapter{
		api:  krakenapi.New(cfg.APIKey, cfg.APISecret),
		log:  log,
		info: make(map[string]krakenapi.AssetPairInfo),
	}
}

func (a *Adapter) Name() string { return "kraken" }

// Authenticate verifies the credentials and warms the pair table.
func (a *Adapter) Authenticate(ctx context.Context) error {
	err := a.call(ctx, func() error {
		if _, err := a.api.Balance(); err != nil {
			return fmt.Errorf("kraken authenticate: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return a.loadInfo(ctx)
}

func (a *Adapter) loadInfo(ctx context.Context) error {
	return a.call(ctx, func() error {
		raw, err := a.api.Query("AssetPairs", map[string]string{})
		if err != nil {
			return fmt.Errorf("kraken asset pairs: %w", err)
		}
		pairs, err := decodePairs(raw)
		if err != nil {
			return err
		}
		a.mu.Lock()
		for _, p := range pairs {
			a.info[p.Altname] = p
		}
		count := len(a.info)
		a.mu.Unlock()
		a.log.Info("exchange info loaded",
			logger.String("exchange", "kraken"),
			logger.Int("pairs", count))
		return nil
	})
}

// decodePairs converts the untyped AssetPairs result into pair info.
// The typed response on the client is a fixed struct that predates most
// of today's listings, so the generic query path is the usable one.
func decodePairs(raw interface{}) (map[string]krakenapi.AssetPairInfo, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("kraken asset pairs: unexpected response %T", raw)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("kraken asset pairs: %w", err)
	}
	pairs := make(map[string]krakenapi.AssetPairInfo, len(m))
	if err := json.Unmarshal(b, &pairs); err != nil {
		return nil, fmt.Errorf("kraken asset pairs: %w", err)
	}
	return pairs, nil
}

func (a *Adapter) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	pair := Pair(symbol)
	var out *models.Ticker
	err := a.call(ctx, func() error {
		resp, err := a.api.Ticker(pair)
		if err != nil {
			return fmt.Errorf("kraken ticker %s: %w", pair, err)
		}
		t := resp.GetPairTickerInfo(pair)
		out = &models.Ticker{
			Symbol:    symbol,
			Bid:       first(t.Bid),
			Ask:       first(t.Ask),
			Last:      first(t.Close),
			Volume24h: last(t.Volume),
			Timestamp: time.Now().UnixMilli(),
		}
		return nil
	})
	return out, err
}

func (a *Adapter) GetBalances(ctx context.Context) ([]models.Balance, error) {
	var out []models.Balance
	err := a.call(ctx, func() error {
		raw, err := a.api.Query("Balance", map[string]string{})
		if err != nil {
			return fmt.Errorf("kraken balances: %w", err)
		}
		assets, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("kraken balances: unexpected response %T", raw)
		}
		for asset, v := range assets {
			s, ok := v.(string)
			if !ok {
				continue
			}
			free, err := strconv.ParseFloat(s, 64)
			if err != nil || free == 0 {
				continue
			}
			out = append(out, models.Balance{Asset: normalizeAsset(asset), Free: free})
		}
		return nil
	})
	return out, err
}

func (a *Adapter) CreateOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	pair := Pair(req.Symbol)
	args := make(map[string]string)
	if req.Price > 0 {
		args["price"] = strconv.FormatFloat(req.Price, 'f', a.priceDecimals(pair), 64)
	}
	if req.StopPrice > 0 {
		args["price2"] = strconv.FormatFloat(req.StopPrice, 'f', a.priceDecimals(pair), 64)
	}
	if req.RequestID != "" {
		args["userref"] = userRef(req.RequestID)
	}

	var out *models.OrderResult
	err := a.call(ctx, func() error {
		resp, err := a.api.AddOrder(
			pair,
			strings.ToLower(string(req.Side)),
			orderTypeOf(req.Type),
			strconv.FormatFloat(req.Quantity, 'f', a.lotDecimals(pair), 64),
			args)
		if err != nil {
			return fmt.Errorf("kraken order %s: %w", pair, err)
		}
		if len(resp.TransactionIds) == 0 {
			return fmt.Errorf("kraken order %s: no transaction id returned", pair)
		}
		now := time.Now().UnixMilli()
		out = &models.OrderResult{
			OrderID:     resp.TransactionIds[0],
			Exchange:    a.Name(),
			Symbol:      req.Symbol,
			Side:        req.Side,
			Type:        req.Type,
			Quantity:    req.Quantity,
			Status:      models.OrderStatusNew,
			SubmittedAt: now,
			UpdatedAt:   now,
			SignalID:    req.SignalID,
			RequestID:   req.RequestID,
		}
		return nil
	})
	return out, err
}

func (a *Adapter) CancelOrder(ctx context.Context, _ string, orderID string) error {
	return a.call(ctx, func() error {
		if _, err := a.api.CancelOrder(orderID); err != nil {
			return fmt.Errorf("kraken cancel %s: %w", orderID, err)
		}
		return nil
	})
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
		MakerFee:       0.0016,
		TakerFee:       0.0026,
	}, nil
}

// call runs fn in a goroutine so a cancelled context unblocks the caller
// even though the kraken client itself cannot be interrupted.
func (a *Adapter) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (a *Adapter) lotDecimals(pair string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if p, ok := a.info[pair]; ok {
		return p.LotDecimals
	}
	return 8
}

func (a *Adapter) priceDecimals(pair string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if p, ok := a.info[pair]; ok {
		return p.PairDecimals
	}
	return 2
}

// Pair converts a BASE/QUOTE symbol to kraken's altname form. Kraken
// lists bitcoin as XBT.
func Pair(symbol string) string {
	s := strings.NewReplacer("/", "", "-", "", "_", "").Replace(strings.ToUpper(symbol))
	if strings.HasPrefix(s, "BTC") {
		s = "XBT" + s[3:]
	}
	return s
}

func normalizeAsset(asset string) string {
	switch asset {
	case "XXBT", "XBT":
		return "BTC"
	case "XETH":
		return "ETH"
	case "ZUSD":
		return "USD"
	case "ZEUR":
		return "EUR"
	}
	return asset
}

func orderTypeOf(t models.OrderType) string {
	switch t {
	case models.OrderLimit:
		return "limit"
	case models.OrderStopLoss:
		return "stop-loss"
	case models.OrderTakeProfit:
		return "take-profit"
	case models.OrderStopLossLimit:
		return "stop-loss-limit"
	}
	return "market"
}

// first and last pull values out of kraken's positional ticker arrays.
func first(vals []string) float64 {
	if len(vals) == 0 {
		return 0
	}
	f, _ := strconv.ParseFloat(vals[0], 64)
	return f
}

func last(vals []string) float64 {
	if len(vals) == 0 {
		return 0
	}
	f, _ := strconv.ParseFloat(vals[len(vals)-1], 64)
	return f
}

// userRef derives a numeric reference kraken accepts from the request id.
func userRef(requestID string) string {
	var h uint32
	for i := 0; i < len(requestID); i++ {
		h = h*31 + uint32(requestID[i])
	}
	return strconv.FormatUint(uint64(h%2147483647), 10)
}

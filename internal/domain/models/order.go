package models

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderMarket        OrderType = "MARKET"
	OrderLimit         OrderType = "LIMIT"
	OrderStopLoss      OrderType = "STOP_LOSS"
	OrderStopLossLimit OrderType = "STOP_LOSS_LIMIT"
	OrderTakeProfit    OrderType = "TAKE_PROFIT"
)

// TimeInForce controls how long an order rests on the book.
type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

// OrderStatus is the normalized lifecycle state reported by adapters.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// OrderRequest is the order to submit to an exchange adapter.
type OrderRequest struct {
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	Quantity    float64     `json:"quantity"`
	Price       float64     `json:"price,omitempty"`      // required for LIMIT
	StopPrice   float64     `json:"stop_price,omitempty"` // required for stop orders
	TimeInForce TimeInForce `json:"time_in_force,omitempty"`
	SignalID    string      `json:"signal_id,omitempty"`
	RequestID   string      `json:"request_id,omitempty"`
}

// Validate returns the structural problems of the request, independent of
// any exchange. Quantity bounds are enforced by the router against its
// configured limits.
func (o *OrderRequest) Validate() []string {
	var errs []string
	if o.Symbol == "" {
		errs = append(errs, "symbol is required")
	}
	if o.Side != SideBuy && o.Side != SideSell {
		errs = append(errs, "side must be BUY or SELL")
	}
	if o.Quantity <= 0 {
		errs = append(errs, "quantity must be positive")
	}
	switch o.Type {
	case OrderMarket:
	case OrderLimit:
		if o.Price <= 0 {
			errs = append(errs, "price is required for LIMIT orders")
		}
	case OrderStopLoss, OrderTakeProfit:
		if o.StopPrice <= 0 {
			errs = append(errs, "stop price is required for stop orders")
		}
	case OrderStopLossLimit:
		if o.Price <= 0 {
			errs = append(errs, "price is required for stop-limit orders")
		}
		if o.StopPrice <= 0 {
			errs = append(errs, "stop price is required for stop orders")
		}
	default:
		errs = append(errs, "unknown order type")
	}
	return errs
}

// OrderResult is the normalized outcome returned to the caller. Order ids
// are exchange-assigned and opaque.
type OrderResult struct {
	OrderID     string      `json:"order_id"`
	Exchange    string      `json:"exchange"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	Quantity    float64     `json:"quantity"`
	FilledQty   float64     `json:"filled_qty"`
	AvgPrice    float64     `json:"avg_price,omitempty"`
	Status      OrderStatus `json:"status"`
	SubmittedAt int64       `json:"submitted_at"` // ms since epoch
	UpdatedAt   int64       `json:"updated_at"`   // ms since epoch
	SignalID    string      `json:"signal_id,omitempty"`
	RequestID   string      `json:"request_id,omitempty"`
}

// Ticker is a point-in-time market quote.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Volume24h float64 `json:"volume_24h,omitempty"`
	Timestamp int64   `json:"timestamp"` // ms since epoch
}

// Balance is a per-asset account balance.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// ExchangeInfo describes an exchange's tradable surface.
type ExchangeInfo struct {
	Name           string             `json:"name"`
	SupportedPairs []string           `json:"supported_pairs"`
	MakerFee       float64            `json:"maker_fee"`
	TakerFee       float64            `json:"taker_fee"`
	RateLimitHints map[string]int     `json:"rate_limit_hints,omitempty"`
	MinOrderSizes  map[string]float64 `json:"min_order_sizes,omitempty"`
}

// Position is an open position snapshot supplied by the caller of the
// risk gate; the core never tracks positions itself.
type Position struct {
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	Size      float64 `json:"size"` // quote-currency notional
	Entry     float64 `json:"entry"`
	Leverage  float64 `json:"leverage,omitempty"`
	OpenedAt  int64   `json:"opened_at"`
	BaseAsset string  `json:"base_asset,omitempty"`
}

// Base returns the position's base asset, deriving it from the symbol
// when not set explicitly.
func (p *Position) Base() string {
	if p.BaseAsset != "" {
		return p.BaseAsset
	}
	s := Signal{Symbol: p.Symbol}
	return s.BaseAsset()
}

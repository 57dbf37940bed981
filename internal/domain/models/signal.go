package models

import "time"

// Side is the direction of a proposed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SignalStatus tracks a ranked signal through the pipeline.
type SignalStatus string

const (
	SignalPending  SignalStatus = "pending"
	SignalAccepted SignalStatus = "accepted"
	SignalRejected SignalStatus = "rejected"
)

// Signal is a proposed trade produced by an external strategy engine.
// It is immutable once created and consumed exactly once by the risk gate.
type Signal struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Confidence float64 `json:"confidence"` // 0..100
	Strategy   string  `json:"strategy"`
	Timeframe  string  `json:"timeframe"`
	Amount     float64 `json:"amount,omitempty"` // requested position size in quote currency, optional
	Leverage   float64 `json:"leverage,omitempty"`
	Timestamp  int64   `json:"timestamp"` // ms since epoch, source clock
}

// Validate returns the structural problems of the signal, empty when sound.
// Stop-loss and take-profit must bracket the entry consistently with the side.
func (s *Signal) Validate() []string {
	var errs []string
	if s.Symbol == "" {
		errs = append(errs, "symbol is required")
	}
	if s.Side != SideBuy && s.Side != SideSell {
		errs = append(errs, "side must be BUY or SELL")
	}
	if s.Entry <= 0 {
		errs = append(errs, "entry price must be positive")
	}
	if s.StopLoss <= 0 {
		errs = append(errs, "stop loss must be positive")
	}
	if s.TakeProfit <= 0 {
		errs = append(errs, "take profit must be positive")
	}
	if s.Confidence < 0 || s.Confidence > 100 {
		errs = append(errs, "confidence must be within [0,100]")
	}
	if s.Entry > 0 && s.StopLoss > 0 && s.TakeProfit > 0 {
		switch s.Side {
		case SideBuy:
			if s.StopLoss >= s.Entry {
				errs = append(errs, "stop loss must be below entry for a long")
			}
			if s.TakeProfit <= s.Entry {
				errs = append(errs, "take profit must be above entry for a long")
			}
		case SideSell:
			if s.StopLoss <= s.Entry {
				errs = append(errs, "stop loss must be above entry for a short")
			}
			if s.TakeProfit >= s.Entry {
				errs = append(errs, "take profit must be below entry for a short")
			}
		}
	}
	return errs
}

// RiskReward returns reward/risk computed from the entry distances.
// Zero when the risk distance is degenerate.
func (s *Signal) RiskReward() float64 {
	risk := abs(s.Entry - s.StopLoss)
	if risk == 0 {
		return 0
	}
	return abs(s.TakeProfit-s.Entry) / risk
}

// StopDistance is the relative distance between entry and stop loss.
func (s *Signal) StopDistance() float64 {
	if s.Entry == 0 {
		return 0
	}
	return abs(s.Entry-s.StopLoss) / s.Entry
}

// BaseAsset extracts the base asset from a pair symbol such as BTC/USDT
// or BTCUSDT (falls back to stripping a known quote suffix).
func (s *Signal) BaseAsset() string {
	sym := s.Symbol
	for i := 0; i < len(sym); i++ {
		if sym[i] == '/' || sym[i] == '-' || sym[i] == '_' {
			return sym[:i]
		}
	}
	for _, quote := range []string{"USDT", "USDC", "USD", "EUR", "BTC", "ETH"} {
		if len(sym) > len(quote) && sym[len(sym)-len(quote):] == quote {
			return sym[:len(sym)-len(quote)]
		}
	}
	return sym
}

// RankedSignal is a Signal with a derived priority and processing status.
// Only the status transitions after creation.
type RankedSignal struct {
	Signal     *Signal      `json:"signal"`
	Priority   float64      `json:"priority"` // 0..100
	Status     SignalStatus `json:"status"`
	Reasons    []string     `json:"reasons,omitempty"` // populated on rejection
	ReceivedAt int64        `json:"received_at"`       // ms since epoch, intake clock
	Seq        uint64       `json:"-"`                 // arrival order, tie-breaker
}

// NowMillis converts a wall-clock instant to the ms-since-epoch form used
// on every timestamp in the order path.
func NowMillis(t time.Time) int64 { return t.UnixMilli() }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

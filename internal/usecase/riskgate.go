package usecase

import (
	"context"
	"fmt"
	"sync"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
)

// RiskConfig holds the pre-trade policy limits. Ratios are fractions of
// portfolio value unless noted.
type RiskConfig struct {
	MaxRiskPerTrade     float64 // fraction risked per trade
	MaxDailyLoss        float64 // fraction of portfolio lost in a day
	MaxDrawdown         float64 // fraction, peak-to-trough intraday
	MaxConcurrentTrades int
	MaxDailyTrades      int
	MinConfidence       float64
	MaxLeverage         float64
	MaxPositionSize     float64 // fraction of portfolio per position
	CorrelationLimit    int     // open positions on the same base asset
	VolatilityLimit     float64
	LiquidityThreshold  float64 // quote volume floor
	MinOrderValue       float64 // absolute minimum, quote currency
}

// RiskGate validates a candidate signal against portfolio, exposure,
// correlation, and market limits before it may reach the router. Daily
// counters are process state; an external scheduler resets them.
type RiskGate struct {
	mu  sync.Mutex
	cfg RiskConfig

	dailyTrades int
	dailyPnL    float64
	peakPnL     float64
	drawdown    float64

	market  domrepo.MarketEstimator
	clock   domrepo.Clock
	metrics domrepo.Metrics
}

func NewRiskGate(cfg RiskConfig, market domrepo.MarketEstimator, clock domrepo.Clock, metrics domrepo.Metrics) *RiskGate {
	if cfg.MaxRiskPerTrade <= 0 {
		cfg.MaxRiskPerTrade = 0.02
	}
	if cfg.MaxDailyLoss <= 0 {
		cfg.MaxDailyLoss = 0.05
	}
	if cfg.MaxConcurrentTrades <= 0 {
		cfg.MaxConcurrentTrades = 5
	}
	if cfg.MaxDailyTrades <= 0 {
		cfg.MaxDailyTrades = 20
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 60
	}
	if cfg.MaxLeverage <= 0 {
		cfg.MaxLeverage = 3
	}
	if cfg.MaxPositionSize <= 0 {
		cfg.MaxPositionSize = 0.25
	}
	if cfg.CorrelationLimit <= 0 {
		cfg.CorrelationLimit = 3
	}
	if cfg.MinOrderValue <= 0 {
		cfg.MinOrderValue = 10
	}
	return &RiskGate{cfg: cfg, market: market, clock: clock, metrics: metrics}
}

// Evaluate runs the risk pipeline for one signal against a portfolio
// snapshot. Hard failures short-circuit; warnings accumulate throughout
// so an approved signal can still surface soft findings.
func (g *RiskGate) Evaluate(ctx context.Context, sig *models.Signal, portfolioValue float64, open []models.Position) *models.RiskAssessment {
	g.mu.Lock()
	defer g.mu.Unlock()

	a := &models.RiskAssessment{Valid: true, EvaluatedAt: models.NowMillis(g.clock.Now())}
	exposureWarnings, marketWarnings := 0, 0
	finalize := func() *models.RiskAssessment {
		a.Score = g.score(sig, exposureWarnings, marketWarnings)
		if !a.Valid {
			g.metrics.RecordRejection("risk", a.Errors[0])
		}
		return a
	}

	// structural validation
	if errs := sig.Validate(); len(errs) > 0 {
		for _, e := range errs {
			a.Fail(e)
		}
		return finalize()
	}
	if sig.Leverage > g.cfg.MaxLeverage {
		a.Fail(fmt.Sprintf("leverage %.1f exceeds maximum %.1f", sig.Leverage, g.cfg.MaxLeverage))
		return finalize()
	}
	if portfolioValue <= 0 {
		a.Fail("portfolio value must be positive")
		return finalize()
	}

	// portfolio exposure
	var exposure float64
	for _, p := range open {
		exposure += p.Size
	}
	ratio := exposure / portfolioValue
	switch {
	case ratio > g.cfg.MaxPositionSize:
		a.Fail(fmt.Sprintf("portfolio exposure %.1f%% exceeds limit %.1f%%", ratio*100, g.cfg.MaxPositionSize*100))
		return finalize()
	case ratio > 0.8*g.cfg.MaxPositionSize:
		a.Warn(fmt.Sprintf("portfolio exposure %.1f%% approaching limit %.1f%%", ratio*100, g.cfg.MaxPositionSize*100))
		exposureWarnings++
	}
	if len(open) >= g.cfg.MaxConcurrentTrades {
		a.Fail(fmt.Sprintf("open positions %d at concurrent-trade limit %d", len(open), g.cfg.MaxConcurrentTrades))
		return finalize()
	}

	// position sizing against the risk budget
	stopDist := sig.StopDistance()
	if stopDist <= 0 {
		a.Fail("stop distance is degenerate")
		return finalize()
	}
	maxAmount := g.cfg.MaxRiskPerTrade * portfolioValue / stopDist
	amount := sig.Amount
	if amount <= 0 {
		amount = maxAmount
	}
	if amount > maxAmount {
		a.AdjustedAmount = maxAmount
		a.Adjusted = true
		// advisory only, not an exposure breach, so it stays out of
		// the scored warning count
		a.Warn(fmt.Sprintf("position size reduced from %.2f to %.2f to fit risk budget", amount, maxAmount))
		amount = maxAmount
	} else {
		a.AdjustedAmount = amount
	}
	if amount < g.cfg.MinOrderValue {
		a.Fail(fmt.Sprintf("position size %.2f below minimum order value %.2f", amount, g.cfg.MinOrderValue))
		return finalize()
	}

	// correlation by base asset
	base := sig.BaseAsset()
	correlated := 0
	for _, p := range open {
		if p.Base() == base {
			correlated++
		}
	}
	if correlated >= g.cfg.CorrelationLimit {
		a.Fail(fmt.Sprintf("%d open positions already correlated with %s", correlated, base))
		return finalize()
	}
	if correlated >= 1 {
		a.Warn(fmt.Sprintf("%d open position(s) share base asset %s", correlated, base))
	}

	// market risk, advisory only
	if g.market != nil {
		if est, err := g.market.Estimate(ctx, sig.Symbol); err == nil && est != nil {
			if g.cfg.VolatilityLimit > 0 && est.Volatility > g.cfg.VolatilityLimit {
				a.Warn(fmt.Sprintf("volatility %.4f above ceiling %.4f", est.Volatility, g.cfg.VolatilityLimit))
				marketWarnings++
			}
			if g.cfg.LiquidityThreshold > 0 && est.Liquidity > 0 && est.Liquidity < g.cfg.LiquidityThreshold {
				a.Warn(fmt.Sprintf("liquidity %.0f below floor %.0f", est.Liquidity, g.cfg.LiquidityThreshold))
				marketWarnings++
			}
		}
	}

	// daily limits
	if g.dailyTrades >= g.cfg.MaxDailyTrades {
		a.Fail(fmt.Sprintf("daily trade count %d at limit %d", g.dailyTrades, g.cfg.MaxDailyTrades))
		return finalize()
	}
	if g.dailyPnL < 0 && -g.dailyPnL/portfolioValue > g.cfg.MaxDailyLoss {
		a.Fail(fmt.Sprintf("daily loss %.2f exceeds limit %.1f%% of portfolio", -g.dailyPnL, g.cfg.MaxDailyLoss*100))
		return finalize()
	}
	if g.cfg.MaxDrawdown > 0 && g.drawdown/portfolioValue > g.cfg.MaxDrawdown {
		a.Fail(fmt.Sprintf("intraday drawdown %.2f exceeds limit %.1f%% of portfolio", g.drawdown, g.cfg.MaxDrawdown*100))
		return finalize()
	}

	// confidence floor, independent of everything above
	if sig.Confidence < g.cfg.MinConfidence {
		a.Fail(fmt.Sprintf("confidence %.1f below risk threshold %.1f", sig.Confidence, g.cfg.MinConfidence))
		return finalize()
	}

	return finalize()
}

// RecordTrade folds a completed trade into the daily counters.
func (g *RiskGate) RecordTrade(realizedPnL float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyTrades++
	g.dailyPnL += realizedPnL
	if g.dailyPnL > g.peakPnL {
		g.peakPnL = g.dailyPnL
	}
	if dd := g.peakPnL - g.dailyPnL; dd > g.drawdown {
		g.drawdown = dd
	}
}

// ResetDaily zeroes the rolling counters. Called by the scheduler at the
// daily rollover, never by the gate itself.
func (g *RiskGate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyTrades = 0
	g.dailyPnL = 0
	g.peakPnL = 0
	g.drawdown = 0
}

// DailyStats reports the current rolling counters.
func (g *RiskGate) DailyStats() (trades int, pnl float64, drawdown float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyTrades, g.dailyPnL, g.drawdown
}

func (g *RiskGate) score(sig *models.Signal, exposureWarnings, marketWarnings int) float64 {
	lev := sig.Leverage
	if lev < 1 {
		lev = 1
	}
	levTerm := lev * 2
	if levTerm > 20 {
		levTerm = 20
	}
	s := (100-sig.Confidence)*0.1 + 5*float64(exposureWarnings) + 3*float64(marketWarnings) + levTerm
	if s > 100 {
		s = 100
	}
	if s < 0 {
		s = 0
	}
	return s
}

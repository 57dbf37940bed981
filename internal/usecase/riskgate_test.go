package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
)

func newGate(cfg RiskConfig, market *stubMarket) *RiskGate {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if market == nil {
		return NewRiskGate(cfg, nil, clock, nopMetrics{})
	}
	return NewRiskGate(cfg, market, clock, nopMetrics{})
}

func TestRiskGateApprovesSizedPosition(t *testing.T) {
	g := newGate(RiskConfig{MaxRiskPerTrade: 0.02, MinConfidence: 75}, nil)

	sig := buySignal()
	sig.Amount = 5000 // risk budget at 2% of 10k with a 2% stop allows 10k

	a := g.Evaluate(context.Background(), sig, 10000, nil)
	require.True(t, a.Valid, "errors: %v", a.Errors)
	assert.Empty(t, a.Warnings)
	assert.False(t, a.Adjusted)
	assert.InDelta(t, 5000, a.AdjustedAmount, 1e-9)
}

func TestRiskGateCapsOversizedPosition(t *testing.T) {
	g := newGate(RiskConfig{MaxRiskPerTrade: 0.02}, nil)

	sig := buySignal()
	sig.Amount = 20000

	a := g.Evaluate(context.Background(), sig, 10000, nil)
	require.True(t, a.Valid)
	assert.True(t, a.Adjusted)
	assert.InDelta(t, 10000, a.AdjustedAmount, 1e-9)
	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "reduced")
}

func TestRiskGateSizeAdjustmentDoesNotRaiseScore(t *testing.T) {
	g := newGate(RiskConfig{MaxRiskPerTrade: 0.02}, nil)

	within := buySignal()
	within.Amount = 5000
	baseline := g.Evaluate(context.Background(), within, 10000, nil)
	require.True(t, baseline.Valid)
	require.Empty(t, baseline.Warnings)

	oversized := buySignal()
	oversized.Amount = 20000
	adjusted := g.Evaluate(context.Background(), oversized, 10000, nil)
	require.True(t, adjusted.Valid)
	assert.True(t, adjusted.Adjusted)
	require.Len(t, adjusted.Warnings, 1)

	// the sizing warning is advisory and must not feed the score
	assert.Equal(t, baseline.Score, adjusted.Score)
}

func TestRiskGateDefaultsAmountToRiskBudget(t *testing.T) {
	g := newGate(RiskConfig{MaxRiskPerTrade: 0.02}, nil)

	sig := buySignal() // no Amount set

	a := g.Evaluate(context.Background(), sig, 10000, nil)
	require.True(t, a.Valid)
	assert.False(t, a.Adjusted)
	assert.InDelta(t, 10000, a.AdjustedAmount, 1e-9)
}

func TestRiskGateRejectsAtConcurrentLimit(t *testing.T) {
	g := newGate(RiskConfig{MaxConcurrentTrades: 5}, nil)

	open := []models.Position{
		{Symbol: "ETH/USDT", Size: 100},
		{Symbol: "SOL/USDT", Size: 100},
		{Symbol: "XRP/USDT", Size: 100},
		{Symbol: "ADA/USDT", Size: 100},
		{Symbol: "DOT/USDT", Size: 100},
	}
	a := g.Evaluate(context.Background(), buySignal(), 10000, open)
	require.False(t, a.Valid)
	require.Len(t, a.Errors, 1)
	assert.Contains(t, a.Errors[0], "concurrent-trade limit")
}

func TestRiskGateRejectsExcessLeverage(t *testing.T) {
	g := newGate(RiskConfig{MaxLeverage: 3}, nil)

	sig := buySignal()
	sig.Leverage = 5

	a := g.Evaluate(context.Background(), sig, 10000, nil)
	require.False(t, a.Valid)
	assert.Contains(t, a.Errors[0], "leverage")
}

func TestRiskGateRejectsLowConfidence(t *testing.T) {
	g := newGate(RiskConfig{MinConfidence: 75}, nil)

	sig := buySignal()
	sig.Confidence = 60

	a := g.Evaluate(context.Background(), sig, 10000, nil)
	require.False(t, a.Valid)
	assert.Contains(t, a.Errors[0], "confidence")
}

func TestRiskGateRejectsCorrelatedExposure(t *testing.T) {
	g := newGate(RiskConfig{CorrelationLimit: 3}, nil)

	open := []models.Position{
		{Symbol: "BTC/USDT", Size: 100},
		{Symbol: "BTCUSDC", Size: 100},
		{Symbol: "BTC-EUR", Size: 100},
	}
	a := g.Evaluate(context.Background(), buySignal(), 10000, open)
	require.False(t, a.Valid)
	assert.Contains(t, a.Errors[0], "correlated with BTC")
}

func TestRiskGateWarnsOnSharedBaseAsset(t *testing.T) {
	g := newGate(RiskConfig{}, nil)

	open := []models.Position{{Symbol: "BTCUSDT", Size: 100}}
	a := g.Evaluate(context.Background(), buySignal(), 10000, open)
	require.True(t, a.Valid)
	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0], "share base asset BTC")
}

func TestRiskGateDailyTradeLimit(t *testing.T) {
	g := newGate(RiskConfig{MaxDailyTrades: 2}, nil)

	g.RecordTrade(50)
	g.RecordTrade(-20)

	a := g.Evaluate(context.Background(), buySignal(), 10000, nil)
	require.False(t, a.Valid)
	assert.Contains(t, a.Errors[0], "daily trade count")
}

func TestRiskGateDailyLossLimit(t *testing.T) {
	g := newGate(RiskConfig{MaxDailyLoss: 0.05}, nil)

	g.RecordTrade(-600) // 6% of a 10k portfolio

	a := g.Evaluate(context.Background(), buySignal(), 10000, nil)
	require.False(t, a.Valid)
	assert.Contains(t, a.Errors[0], "daily loss")
}

func TestRiskGateResetDailyClearsCounters(t *testing.T) {
	g := newGate(RiskConfig{MaxDailyLoss: 0.05, MaxDailyTrades: 1}, nil)

	g.RecordTrade(-600)
	g.ResetDaily()

	trades, pnl, drawdown := g.DailyStats()
	assert.Zero(t, trades)
	assert.Zero(t, pnl)
	assert.Zero(t, drawdown)

	a := g.Evaluate(context.Background(), buySignal(), 10000, nil)
	assert.True(t, a.Valid)
}

func TestRiskGateMarketFindingsAreAdvisory(t *testing.T) {
	market := &stubMarket{est: &models.MarketEstimate{
		Symbol: "BTC/USDT", Volatility: 0.09, Liquidity: 500,
	}}
	g := newGate(RiskConfig{VolatilityLimit: 0.05, LiquidityThreshold: 1000}, market)

	a := g.Evaluate(context.Background(), buySignal(), 10000, nil)
	require.True(t, a.Valid)
	assert.Len(t, a.Warnings, 2)
	assert.Greater(t, a.Score, 0.0)
}

func TestRiskGateEvaluateIsIdempotent(t *testing.T) {
	g := newGate(RiskConfig{}, nil)

	sig := buySignal()
	first := g.Evaluate(context.Background(), sig, 10000, nil)
	second := g.Evaluate(context.Background(), sig, 10000, nil)

	assert.Equal(t, first.Valid, second.Valid)
	assert.Equal(t, first.Errors, second.Errors)
	assert.InDelta(t, first.Score, second.Score, 1e-9)

	trades, _, _ := g.DailyStats()
	assert.Zero(t, trades, "evaluation must not consume daily budget")
}

func TestRiskGateRejectsInvalidSignalStructure(t *testing.T) {
	g := newGate(RiskConfig{}, nil)

	sig := buySignal()
	sig.StopLoss = 51000 // above entry on a long

	a := g.Evaluate(context.Background(), sig, 10000, nil)
	require.False(t, a.Valid)
	assert.Contains(t, a.Errors[0], "stop loss must be below entry")
}

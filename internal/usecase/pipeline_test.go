package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
	internalrepo "CoinRoute/internal/repository"
	"CoinRoute/pkg/logger"
)

// capturePersist records published persistence messages in order.
type capturePersist struct {
	mu    sync.Mutex
	types []string
	loads []interface{}
}

func (c *capturePersist) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, msgType)
	c.loads = append(c.loads, payload)
	return nil
}

func newPipeline(t *testing.T, adapter *scriptedAdapter) (*Pipeline, *SignalIntake, *capturePersist) {
	t.Helper()
	intake, _ := newIntake(IntakeConfig{})
	router := newRouter(t, adapter, nil)
	gate := NewRiskGate(RiskConfig{
		MaxRiskPerTrade:     0.02,
		MaxDailyLoss:        0.05,
		MaxConcurrentTrades: 5,
		MaxDailyTrades:      20,
		MinConfidence:       60,
		MaxLeverage:         3,
		MaxPositionSize:     0.25,
		CorrelationLimit:    3,
		MinOrderValue:       10,
	}, nil, newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)), nopMetrics{})
	persist := &capturePersist{}
	p := NewPipeline(PipelineConfig{PortfolioValue: 100000},
		intake, gate, router, persist, nopMetrics{}, newFakeClock(time.Now()), logger.Nop())
	return p, intake, persist
}

func TestPipelineApprovedSignalSubmitsAndPersists(t *testing.T) {
	adapter := &scriptedAdapter{name: "paper"}
	p, intake, persist := newPipeline(t, adapter)

	rs, err := intake.Submit(buySignal())
	require.NoError(t, err)
	p.handle(context.Background(), intake.Next())

	assert.Equal(t, 1, adapter.orderCalls())
	assert.Equal(t, models.SignalAccepted, rs.Status)
	require.Equal(t, []string{internalrepo.TypeOrderPersist}, persist.types)
	res, ok := persist.loads[0].(*models.OrderResult)
	require.True(t, ok)
	assert.Equal(t, "BTC/USDT", res.Symbol)
	assert.Len(t, p.Positions(), 1)
}

func TestPipelineGateRejectionSkipsDispatch(t *testing.T) {
	adapter := &scriptedAdapter{name: "paper"}
	p, intake, persist := newPipeline(t, adapter)

	sig := buySignal()
	sig.Leverage = 10 // over the gate limit
	_, err := intake.Submit(sig)
	require.NoError(t, err)
	p.handle(context.Background(), intake.Next())

	assert.Zero(t, adapter.orderCalls())
	require.Equal(t, []string{internalrepo.TypeRejectionPersist}, persist.types)
	rs, ok := persist.loads[0].(*models.RankedSignal)
	require.True(t, ok)
	assert.Equal(t, models.SignalRejected, rs.Status)
	assert.Empty(t, p.Positions())
}

func TestPipelineOppositeFillClosesPosition(t *testing.T) {
	adapter := &scriptedAdapter{name: "paper"}
	p, intake, _ := newPipeline(t, adapter)

	_, err := intake.Submit(buySignal())
	require.NoError(t, err)
	p.handle(context.Background(), intake.Next())
	require.Len(t, p.Positions(), 1)

	sell := buySignal()
	sell.ID = "sig-2"
	sell.Side = models.SideSell
	sell.StopLoss = 51000
	sell.TakeProfit = 47000
	_, err = intake.Submit(sell)
	require.NoError(t, err)
	p.handle(context.Background(), intake.Next())

	assert.Equal(t, 2, adapter.orderCalls())
	assert.Empty(t, p.Positions())
}

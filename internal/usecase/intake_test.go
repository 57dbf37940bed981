package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
)

func newIntake(cfg IntakeConfig) (*SignalIntake, *fakeClock) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewSignalIntake(cfg, clock, nopMetrics{}), clock
}

func TestIntakeAcceptsValidSignal(t *testing.T) {
	si, _ := newIntake(IntakeConfig{})

	rs, err := si.Submit(buySignal())
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, rs.Status)
	assert.Empty(t, rs.Reasons)
	assert.Len(t, si.Pending(), 1)
}

func TestIntakeRejectsMalformedSignal(t *testing.T) {
	si, _ := newIntake(IntakeConfig{})

	sig := buySignal()
	sig.TakeProfit = 48000 // below entry on a long

	rs, err := si.Submit(sig)
	require.NoError(t, err)
	assert.Equal(t, models.SignalRejected, rs.Status)
	assert.Contains(t, rs.Reasons[0], "take profit")
	assert.Empty(t, si.Pending())
}

func TestIntakeRateCapsPerSymbolMinute(t *testing.T) {
	si, clock := newIntake(IntakeConfig{MaxSignalsPerMinute: 5})

	for i := 0; i < 5; i++ {
		sig := buySignal()
		sig.ID = fmt.Sprintf("sig-%d", i)
		rs, err := si.Submit(sig)
		require.NoError(t, err)
		require.Equal(t, models.SignalPending, rs.Status)
	}

	// the sixth in the same minute is a rate rejection, not a confidence one
	sixth := buySignal()
	sixth.ID = "sig-5"
	rs, err := si.Submit(sixth)
	require.NoError(t, err)
	assert.Equal(t, models.SignalRejected, rs.Status)
	assert.Contains(t, rs.Reasons[0], "rate")

	// a different symbol is unaffected
	other := buySignal()
	other.Symbol = "ETH/USDT"
	rs, err = si.Submit(other)
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, rs.Status)

	// the next minute opens a fresh bucket
	clock.Advance(time.Minute)
	rs, err = si.Submit(buySignal())
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, rs.Status)
}

func TestIntakeRejectsLowConfidence(t *testing.T) {
	si, _ := newIntake(IntakeConfig{MinConfidence: 70})

	sig := buySignal()
	sig.Confidence = 65

	rs, err := si.Submit(sig)
	require.NoError(t, err)
	assert.Equal(t, models.SignalRejected, rs.Status)
	assert.Contains(t, rs.Reasons[0], "confidence 65.0 below minimum 70.0")
}

func TestIntakePriorityScoring(t *testing.T) {
	si, _ := newIntake(IntakeConfig{PriorityThreshold: 85})

	// confidence 90 with rr = 3 gets both bonuses
	strong := buySignal()
	strong.Confidence = 90
	rs, err := si.Submit(strong)
	require.NoError(t, err)
	assert.InDelta(t, 100, rs.Priority, 1e-9) // clamped at 100

	// confidence 75 with rr < 1 is penalized
	weak := buySignal()
	weak.Confidence = 75
	weak.TakeProfit = 50500 // rr = 0.5
	rs, err = si.Submit(weak)
	require.NoError(t, err)
	assert.InDelta(t, 65, rs.Priority, 1e-9)
}

func TestIntakeNextPopsByPriorityThenArrival(t *testing.T) {
	si, _ := newIntake(IntakeConfig{})

	low := buySignal()
	low.ID = "low"
	low.Confidence = 72
	mid := buySignal()
	mid.ID = "mid"
	mid.Symbol = "ETH/USDT"
	mid.Confidence = 80
	midLater := buySignal()
	midLater.ID = "mid-later"
	midLater.Symbol = "SOL/USDT"
	midLater.Confidence = 80

	for _, sig := range []*models.Signal{low, mid, midLater} {
		_, err := si.Submit(sig)
		require.NoError(t, err)
	}

	assert.Equal(t, "mid", si.Next().Signal.ID)
	assert.Equal(t, "mid-later", si.Next().Signal.ID)
	assert.Equal(t, "low", si.Next().Signal.ID)
	assert.Nil(t, si.Next())
}

func TestIntakeAuditRecordsRejections(t *testing.T) {
	si, _ := newIntake(IntakeConfig{MinConfidence: 70})

	sig := buySignal()
	sig.Confidence = 10
	_, err := si.Submit(sig)
	require.NoError(t, err)

	audit := si.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, models.SignalRejected, audit[0].Status)
}

func TestIntakeResolveMovesSignalToAudit(t *testing.T) {
	si, _ := newIntake(IntakeConfig{})

	rs, err := si.Submit(buySignal())
	require.NoError(t, err)
	popped := si.Next()
	require.Same(t, rs, popped)

	si.Resolve(popped, models.SignalAccepted)
	audit := si.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, models.SignalAccepted, audit[0].Status)
}

func TestIntakeAuditRingIsBounded(t *testing.T) {
	si, _ := newIntake(IntakeConfig{AuditSize: 3, MaxSignalsPerMinute: 100})

	for i := 0; i < 5; i++ {
		sig := buySignal()
		sig.ID = fmt.Sprintf("sig-%d", i)
		sig.Confidence = 10 // force rejections into the audit ring
		_, err := si.Submit(sig)
		require.NoError(t, err)
	}

	audit := si.Audit()
	require.Len(t, audit, 3)
	assert.Equal(t, "sig-2", audit[0].Signal.ID)
	assert.Equal(t, "sig-4", audit[2].Signal.ID)
}

package market

import (
	"context"
	"math"
	"sync"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
)

const sampleSize = 32

// TickerSource is the slice of the router the estimator reads through,
// so ticker sampling shares the same cache and rate limits as the rest
// of the system.
type TickerSource interface {
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
}

// Estimator derives advisory volatility and liquidity figures from the
// tickers it has observed. Volatility is the standard deviation of
// simple returns over the rolling sample; liquidity is the latest 24h
// quote volume.
type Estimator struct {
	source TickerSource
	clock  domrepo.Clock

	mu      sync.Mutex
	samples map[string][]float64
}

func NewEstimator(source TickerSource, clock domrepo.Clock) *Estimator {
	return &Estimator{
		source:  source,
		clock:   clock,
		samples: make(map[string][]float64),
	}
}

func (e *Estimator) Estimate(ctx context.Context, symbol string) (*models.MarketEstimate, error) {
	t, err := e.source.GetTicker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	s := append(e.samples[symbol], t.Last)
	if len(s) > sampleSize {
		s = s[len(s)-sampleSize:]
	}
	e.samples[symbol] = s
	vol := volatility(s)
	e.mu.Unlock()

	return &models.MarketEstimate{
		Symbol:     symbol,
		Volatility: vol,
		Liquidity:  t.Volume24h,
		Timestamp:  models.NowMillis(e.clock.Now()),
	}, nil
}

// volatility computes the stdev of simple returns over the sample.
// Fewer than three observations give no signal.
func volatility(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, prices[i]/prices[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance)
}

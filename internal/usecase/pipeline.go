package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
	internalrepo "CoinRoute/internal/repository"
	"CoinRoute/pkg/logger"
	"CoinRoute/pkg/queue"
)

// PipelineConfig sets the worker pool draining the intake queue.
type PipelineConfig struct {
	Workers        int
	PollInterval   time.Duration
	PortfolioValue float64
}

// Pipeline drives ranked signals through the risk gate and out to the
// router, publishing lifecycle events along the way. It also tracks the
// positions its own fills open so the risk gate sees a current
// portfolio snapshot.
type Pipeline struct {
	cfg     PipelineConfig
	intake  *SignalIntake
	gate    *RiskGate
	router  *ExchangeRouter
	persist queue.Service
	metrics domrepo.Metrics
	clock   domrepo.Clock
	log     *logger.Logger

	mu        sync.Mutex
	positions []models.Position

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewPipeline(
	cfg PipelineConfig,
	intake *SignalIntake,
	gate *RiskGate,
	router *ExchangeRouter,
	persist queue.Service,
	metrics domrepo.Metrics,
	clock domrepo.Clock,
	log *logger.Logger,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Pipeline{
		cfg:     cfg,
		intake:  intake,
		gate:    gate,
		router:  router,
		persist: persist,
		metrics: metrics,
		clock:   clock,
		log:     log,
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.log.Info("pipeline started", logger.Int("workers", p.cfg.Workers))
}

// Stop halts the workers and waits for in-flight signals to finish.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info("pipeline stopped")
}

// Positions returns the open positions the pipeline is tracking.
func (p *Pipeline) Positions() []models.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Position, len(p.positions))
	copy(out, p.positions)
	return out
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				rs := p.intake.Next()
				if rs == nil {
					break
				}
				p.handle(ctx, rs)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, rs *models.RankedSignal) {
	start := p.clock.Now()
	sig := rs.Signal

	assessment := p.gate.Evaluate(ctx, sig, p.cfg.PortfolioValue, p.Positions())
	if !assessment.Valid {
		p.intake.Resolve(rs, models.SignalRejected, assessment.Errors...)
		if err := p.persist.PublishMessage(ctx, internalrepo.TypeRejectionPersist, rs); err != nil {
			p.log.Error("rejection enqueue failed", logger.Error(err))
		}
		p.log.Info("signal rejected by risk gate",
			logger.String("signal_id", sig.ID),
			logger.String("symbol", sig.Symbol),
			logger.Strings("errors", assessment.Errors))
		return
	}
	for _, w := range assessment.Warnings {
		p.log.Warn("risk warning",
			logger.String("signal_id", sig.ID), logger.String("warning", w))
	}

	req := p.orderFor(sig, assessment)
	res, err := p.router.SubmitOrder(ctx, req)
	if err != nil {
		p.intake.Resolve(rs, models.SignalRejected, err.Error())
		if perr := p.persist.PublishMessage(ctx, internalrepo.TypeRejectionPersist, rs); perr != nil {
			p.log.Error("rejection enqueue failed", logger.Error(perr))
		}
		p.metrics.RecordError("order_failed")
		return
	}

	p.intake.Resolve(rs, models.SignalAccepted)
	p.settle(sig, res)
	if err := p.persist.PublishMessage(ctx, internalrepo.TypeOrderPersist, res); err != nil {
		p.log.Error("order enqueue failed",
			logger.String("order_id", res.OrderID), logger.Error(err))
	}
	p.metrics.RecordLatency("signal_to_order", p.clock.Now().Sub(start).Seconds())
}

// orderFor converts an approved signal into a market order sized by the
// risk gate's adjusted quote amount.
func (p *Pipeline) orderFor(sig *models.Signal, a *models.RiskAssessment) *models.OrderRequest {
	qty := a.AdjustedAmount / sig.Entry
	return &models.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     sig.Side,
		Type:     models.OrderMarket,
		Quantity: qty,
		SignalID: sig.ID,
	}
}

// settle folds a fill into the tracked positions and the daily
// counters. An opposite-side fill on the same symbol closes the oldest
// matching position and realizes its PnL.
func (p *Pipeline) settle(sig *models.Signal, res *models.OrderResult) {
	fillPrice := res.AvgPrice
	if fillPrice <= 0 {
		fillPrice = sig.Entry
	}

	p.mu.Lock()
	closedIdx := -1
	for i, pos := range p.positions {
		if strings.EqualFold(pos.Symbol, res.Symbol) && pos.Side != res.Side {
			closedIdx = i
			break
		}
	}
	var pnl float64
	var closed bool
	if closedIdx >= 0 {
		pos := p.positions[closedIdx]
		qty := pos.Size / pos.Entry
		if pos.Side == models.SideBuy {
			pnl = (fillPrice - pos.Entry) * qty
		} else {
			pnl = (pos.Entry - fillPrice) * qty
		}
		p.positions = append(p.positions[:closedIdx], p.positions[closedIdx+1:]...)
		closed = true
	} else {
		p.positions = append(p.positions, models.Position{
			Symbol:   res.Symbol,
			Side:     res.Side,
			Size:     fillPrice * res.FilledQty,
			Entry:    fillPrice,
			Leverage: sig.Leverage,
			OpenedAt: res.SubmittedAt,
		})
	}
	p.mu.Unlock()

	if closed {
		p.gate.RecordTrade(pnl)
		p.log.Info("position closed",
			logger.String("symbol", res.Symbol),
			logger.Float64("pnl", pnl))
	} else {
		p.gate.RecordTrade(0)
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
	"CoinRoute/internal/service/cache"
	"CoinRoute/internal/service/faults"
	"CoinRoute/internal/service/ratelimit"
	"CoinRoute/pkg/logger"
)

// RouterConfig selects the exchange order and bounds dispatched orders.
type RouterConfig struct {
	Primary      string
	Fallbacks    []string
	CacheTTL     time.Duration
	MinOrderSize float64 // base-asset quantity
	MaxOrderSize float64
}

// ExchangeRouter executes order and market-data calls against a primary
// exchange with retry, rate control, and failover across the configured
// fallbacks. It owns the per-exchange rate-limit state for the process
// lifetime.
type ExchangeRouter struct {
	cfg        RouterConfig
	adapters   map[string]domrepo.ExchangeAdapter
	sequence   []string // primary first, then fallbacks
	limiter    *ratelimit.Limiter
	classifier *faults.Classifier
	cache      cache.Service
	log        *logger.Logger
	metrics    domrepo.Metrics
	clock      domrepo.Clock
}

func NewExchangeRouter(
	cfg RouterConfig,
	adapters map[string]domrepo.ExchangeAdapter,
	limiter *ratelimit.Limiter,
	classifier *faults.Classifier,
	mdCache cache.Service,
	log *logger.Logger,
	metrics domrepo.Metrics,
	clock domrepo.Clock,
) (*ExchangeRouter, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	sequence := append([]string{cfg.Primary}, cfg.Fallbacks...)
	for _, name := range sequence {
		if _, ok := adapters[name]; !ok {
			return nil, fmt.Errorf("router: exchange %q is not registered", name)
		}
	}
	return &ExchangeRouter{
		cfg:        cfg,
		adapters:   adapters,
		sequence:   sequence,
		limiter:    limiter,
		classifier: classifier,
		cache:      mdCache,
		log:        log,
		metrics:    metrics,
		clock:      clock,
	}, nil
}

// SubmitOrder validates the request, then walks the exchange sequence:
// rate check, execute, retry on retryable faults, failover otherwise. A
// terminal error on one exchange is not assumed terminal for the next.
func (r *ExchangeRouter) SubmitOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	if req == nil {
		return nil, fmt.Errorf("order request is nil")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &models.ExchangeError{
			Code:      "invalid_order",
			Message:   errs[0],
			Category:  models.ErrValidation,
			Timestamp: models.NowMillis(r.clock.Now()),
			RequestID: req.RequestID,
		}
	}
	if r.cfg.MinOrderSize > 0 && req.Quantity < r.cfg.MinOrderSize {
		return nil, r.validationError(req, fmt.Sprintf("quantity %.8f below minimum order size %.8f", req.Quantity, r.cfg.MinOrderSize))
	}
	if r.cfg.MaxOrderSize > 0 && req.Quantity > r.cfg.MaxOrderSize {
		return nil, r.validationError(req, fmt.Sprintf("quantity %.8f above maximum order size %.8f", req.Quantity, r.cfg.MaxOrderSize))
	}

	var firstErr *models.ExchangeError
	attempted := 0
	prev := ""

	for _, name := range r.sequence {
		adapter := r.adapters[name]
		if !r.supports(ctx, adapter, req.Symbol) {
			r.log.Debug("exchange skipped, symbol unsupported",
				logger.String("exchange", name), logger.String("symbol", req.Symbol))
			continue
		}
		if prev != "" {
			r.metrics.RecordFailover(prev, name)
			r.log.Warn("failing over",
				logger.String("from", prev), logger.String("to", name),
				logger.String("request_id", req.RequestID))
		}
		prev = name
		attempted++

		res, exErr := r.attempt(ctx, adapter, req)
		if exErr == nil {
			r.metrics.RecordOrder(name, req.Symbol, string(res.Status))
			r.log.Info("order created",
				logger.String("exchange", name),
				logger.String("symbol", req.Symbol),
				logger.String("order_id", res.OrderID),
				logger.String("request_id", req.RequestID))
			return res, nil
		}
		if firstErr == nil {
			firstErr = exErr
		}
		if ctx.Err() != nil {
			break
		}
	}

	if firstErr == nil {
		firstErr = &models.ExchangeError{
			Code:      "no_exchange",
			Message:   fmt.Sprintf("no configured exchange supports %s", req.Symbol),
			Category:  models.ErrValidation,
			Timestamp: models.NowMillis(r.clock.Now()),
			RequestID: req.RequestID,
		}
	}
	firstErr.Attempts = attempted
	r.metrics.RecordError("order_terminal")
	r.log.Error("order failed on every exchange",
		logger.String("symbol", req.Symbol),
		logger.Int("exchanges_attempted", attempted),
		logger.String("request_id", req.RequestID),
		logger.Error(firstErr))
	return nil, firstErr
}

// attempt runs the retry loop for a single exchange: RATE_CHECK →
// EXECUTE → classify → backoff. Returns the classified error once the
// exchange's budget is spent.
func (r *ExchangeRouter) attempt(ctx context.Context, adapter domrepo.ExchangeAdapter, req *models.OrderRequest) (*models.OrderResult, *models.ExchangeError) {
	name := adapter.Name()
	for attempts := 0; ; attempts++ {
		if err := r.rateWait(ctx, name); err != nil {
			return nil, r.classifier.Classify(err, name, req.RequestID)
		}

		res, err := adapter.CreateOrder(ctx, req)
		r.limiter.Record(name)
		if err == nil {
			return res, nil
		}

		exErr := r.classifier.Classify(err, name, req.RequestID)
		if !r.classifier.ShouldRetry(exErr, attempts) {
			return nil, exErr
		}
		r.metrics.RecordRetry(name, string(exErr.Category))
		delay := r.classifier.BackoffDelay(attempts)
		r.log.Warn("retrying order",
			logger.String("exchange", name),
			logger.Int("attempt", attempts+1),
			logger.Duration("backoff", delay),
			logger.Error(exErr))
		if err := sleep(ctx, delay); err != nil {
			return nil, r.classifier.Classify(err, name, req.RequestID)
		}
	}
}

// GetTicker serves reads from the short-TTL cache, falling back to a
// routed call across the exchange sequence.
func (r *ExchangeRouter) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	key := cache.Key("ticker", symbol)
	var cached models.Ticker
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		r.metrics.RecordCache(true)
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		r.log.Debug("cache read failed", logger.Error(err))
	}
	r.metrics.RecordCache(false)

	var out *models.Ticker
	err := r.routeRead(ctx, symbol, func(ctx context.Context, a domrepo.ExchangeAdapter) error {
		t, err := a.GetTicker(ctx, symbol)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if serr := r.cache.Set(ctx, key, out, r.cfg.CacheTTL); serr != nil {
		r.log.Debug("cache write failed", logger.Error(serr))
	}
	return out, nil
}

// GetBalances queries the primary exchange's account balances.
func (r *ExchangeRouter) GetBalances(ctx context.Context) ([]models.Balance, error) {
	adapter := r.adapters[r.cfg.Primary]
	if err := r.rateWait(ctx, adapter.Name()); err != nil {
		return nil, r.classifier.Classify(err, adapter.Name(), "")
	}
	balances, err := adapter.GetBalances(ctx)
	r.limiter.Record(adapter.Name())
	if err != nil {
		return nil, r.classifier.Classify(err, adapter.Name(), "")
	}
	return balances, nil
}

// CancelOrder cancels on the exchange that created the order.
func (r *ExchangeRouter) CancelOrder(ctx context.Context, exchange, symbol, orderID string) error {
	adapter, ok := r.adapters[exchange]
	if !ok {
		return fmt.Errorf("router: exchange %q is not registered", exchange)
	}
	if err := r.rateWait(ctx, exchange); err != nil {
		return r.classifier.Classify(err, exchange, "")
	}
	err := adapter.CancelOrder(ctx, symbol, orderID)
	r.limiter.Record(exchange)
	if err != nil {
		return r.classifier.Classify(err, exchange, "")
	}
	r.metrics.RecordOrder(exchange, symbol, "CANCELED")
	r.log.Info("order cancelled",
		logger.String("exchange", exchange), logger.String("order_id", orderID))
	return nil
}

// Exchanges lists the configured routing sequence.
func (r *ExchangeRouter) Exchanges() []string {
	out := make([]string, len(r.sequence))
	copy(out, r.sequence)
	return out
}

// routeRead walks the sequence for a read-only call with the same
// rate/retry/failover treatment as orders.
func (r *ExchangeRouter) routeRead(ctx context.Context, symbol string, call func(context.Context, domrepo.ExchangeAdapter) error) error {
	var firstErr *models.ExchangeError
	attempted := 0

	for _, name := range r.sequence {
		adapter := r.adapters[name]
		if symbol != "" && !r.supports(ctx, adapter, symbol) {
			continue
		}
		attempted++
		exErr := r.attemptRead(ctx, adapter, call)
		if exErr == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = exErr
		}
		if ctx.Err() != nil {
			break
		}
	}
	if firstErr == nil {
		firstErr = &models.ExchangeError{
			Code:      "no_exchange",
			Message:   fmt.Sprintf("no configured exchange supports %s", symbol),
			Category:  models.ErrValidation,
			Timestamp: models.NowMillis(r.clock.Now()),
		}
	}
	firstErr.Attempts = attempted
	return firstErr
}

func (r *ExchangeRouter) attemptRead(ctx context.Context, adapter domrepo.ExchangeAdapter, call func(context.Context, domrepo.ExchangeAdapter) error) *models.ExchangeError {
	name := adapter.Name()
	for attempts := 0; ; attempts++ {
		if err := r.rateWait(ctx, name); err != nil {
			return r.classifier.Classify(err, name, "")
		}
		err := call(ctx, adapter)
		r.limiter.Record(name)
		if err == nil {
			return nil
		}
		exErr := r.classifier.Classify(err, name, "")
		if !r.classifier.ShouldRetry(exErr, attempts) {
			return exErr
		}
		r.metrics.RecordRetry(name, string(exErr.Category))
		if err := sleep(ctx, r.classifier.BackoffDelay(attempts)); err != nil {
			return r.classifier.Classify(err, name, "")
		}
	}
}

// rateWait blocks until the limiter admits a request, sleeping the
// reported wait between checks. Waits are bounded by the largest window.
func (r *ExchangeRouter) rateWait(ctx context.Context, exchange string) error {
	for !r.limiter.CanSend(exchange) {
		d := r.limiter.WaitTime(exchange)
		if d <= 0 {
			d = 50 * time.Millisecond
		}
		r.metrics.RecordRateLimitWait(exchange, d.Seconds())
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExchangeRouter) supports(ctx context.Context, adapter domrepo.ExchangeAdapter, symbol string) bool {
	ok, err := adapter.ValidateSymbol(ctx, symbol)
	if err != nil {
		// unknown support is not grounds to skip a venue
		return true
	}
	return ok
}

func (r *ExchangeRouter) validationError(req *models.OrderRequest, msg string) *models.ExchangeError {
	return &models.ExchangeError{
		Code:      "invalid_order",
		Message:   msg,
		Category:  models.ErrValidation,
		Timestamp: models.NowMillis(r.clock.Now()),
		RequestID: req.RequestID,
	}
}

// sleep waits for d or until the context is cancelled, without holding a
// goroutine hostage to a bare time.Sleep.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

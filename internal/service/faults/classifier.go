package faults

import (
	"errors"
	"strings"
	"time"

	"CoinRoute/internal/domain/models"
)

// CodedError is the optional surface of typed adapter faults: exchange
// SDKs that expose a code/message pair are classified by code before any
// message matching happens.
type CodedError interface {
	error
	FaultCode() string
}

// Policy bounds the retry behaviour derived from a classification.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultPolicy mirrors the deployment defaults.
var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
	Multiplier: 2,
}

// Classifier assigns categories and retryability to adapter faults. It
// is pure: no I/O, no sleeping; the router owns the clock between
// retries.
type Classifier struct {
	policy    Policy
	retryable map[models.ErrorCategory]bool
	clock     func() time.Time
}

type Option func(*Classifier)

// WithPolicy overrides the retry policy.
func WithPolicy(p Policy) Option {
	return func(c *Classifier) { c.policy = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.clock = now }
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		policy: DefaultPolicy,
		retryable: map[models.ErrorCategory]bool{
			models.ErrNetwork:   true,
			models.ErrRateLimit: true,
			models.ErrServer:    true,
		},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify normalizes any adapter fault into an ExchangeError. Already
// classified errors pass through with exchange/request id filled in.
func (c *Classifier) Classify(err error, exchange, requestID string) *models.ExchangeError {
	if err == nil {
		return nil
	}

	var ee *models.ExchangeError
	if errors.As(err, &ee) {
		if ee.Exchange == "" {
			ee.Exchange = exchange
		}
		if ee.RequestID == "" {
			ee.RequestID = requestID
		}
		return ee
	}

	out := &models.ExchangeError{
		Message:   err.Error(),
		Exchange:  exchange,
		Timestamp: models.NowMillis(c.clock()),
		RequestID: requestID,
	}

	var coded CodedError
	if errors.As(err, &coded) {
		out.Code = coded.FaultCode()
		out.Category, out.Retryable = c.fromCode(coded.FaultCode())
		if out.Category != models.ErrUnknown {
			return out.WithCause(err)
		}
	}

	out.Category, out.Retryable = c.fromMessage(err.Error())
	if out.Code == "" {
		out.Code = string(out.Category)
	}
	return out.WithCause(err)
}

// ShouldRetry reports whether another attempt against the same exchange
// is worthwhile.
func (c *Classifier) ShouldRetry(e *models.ExchangeError, attempts int) bool {
	if e == nil || attempts >= c.policy.MaxRetries {
		return false
	}
	return e.Retryable && c.retryable[e.Category]
}

// BackoffDelay is the exponential delay before the given retry attempt,
// clamped to the policy maximum.
func (c *Classifier) BackoffDelay(attempts int) time.Duration {
	d := float64(c.policy.BaseDelay)
	for i := 0; i < attempts; i++ {
		d *= c.policy.Multiplier
	}
	if max := float64(c.policy.MaxDelay); d > max {
		d = max
	}
	return time.Duration(d)
}

// MaxRetries exposes the per-exchange attempt budget.
func (c *Classifier) MaxRetries() int { return c.policy.MaxRetries }

func (c *Classifier) fromCode(code string) (models.ErrorCategory, bool) {
	switch strings.ToUpper(code) {
	case "RATE_LIMIT", "TOO_MANY_REQUESTS", "-1003", "EAPI:RATE LIMIT EXCEEDED":
		return models.ErrRateLimit, true
	case "UNAUTHORIZED", "FORBIDDEN", "INVALID_KEY", "-2014", "-2015":
		return models.ErrAuthentication, false
	case "INVALID_ORDER", "INVALID_SYMBOL", "MIN_NOTIONAL", "-1013", "-1121":
		return models.ErrValidation, false
	case "SERVER_ERROR", "SERVICE_UNAVAILABLE", "-1001":
		return models.ErrServer, true
	default:
		return models.ErrUnknown, false
	}
}

func (c *Classifier) fromMessage(msg string) (models.ErrorCategory, bool) {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "rate limit"), strings.Contains(m, "too many requests"):
		return models.ErrRateLimit, true
	case strings.Contains(m, "unauthorized"), strings.Contains(m, "forbidden"),
		strings.Contains(m, "api key"), strings.Contains(m, "signature"):
		return models.ErrAuthentication, false
	case strings.Contains(m, "invalid"), strings.Contains(m, "insufficient balance"),
		strings.Contains(m, "min notional"), strings.Contains(m, "unknown symbol"):
		return models.ErrValidation, false
	case strings.Contains(m, "timeout"), strings.Contains(m, "network"),
		strings.Contains(m, "connection refused"), strings.Contains(m, "connection reset"),
		strings.Contains(m, "no such host"), strings.Contains(m, "fetch"),
		strings.Contains(m, "eof"):
		return models.ErrNetwork, true
	case strings.Contains(m, "internal server"), strings.Contains(m, "service unavailable"),
		strings.Contains(m, "bad gateway"), strings.Contains(m, "status 5"):
		return models.ErrServer, true
	default:
		return models.ErrUnknown, false
	}
}

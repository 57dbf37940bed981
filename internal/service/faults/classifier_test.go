package faults

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
)

type codedFault struct {
	code string
	msg  string
}

func (f codedFault) Error() string     { return f.msg }
func (f codedFault) FaultCode() string { return f.code }

func TestClassifyByMessage(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		msg       string
		category  models.ErrorCategory
		retryable bool
	}{
		{"request timeout after 30s", models.ErrNetwork, true},
		{"network is unreachable", models.ErrNetwork, true},
		{"dial tcp: connection refused", models.ErrNetwork, true},
		{"401 unauthorized", models.ErrAuthentication, false},
		{"access forbidden for this api key", models.ErrAuthentication, false},
		{"rate limit exceeded", models.ErrRateLimit, true},
		{"invalid quantity precision", models.ErrValidation, false},
		{"internal server error", models.ErrServer, true},
		{"something odd happened", models.ErrUnknown, false},
	}
	for _, tc := range cases {
		got := c.Classify(errors.New(tc.msg), "binance", "")
		assert.Equal(t, tc.category, got.Category, tc.msg)
		assert.Equal(t, tc.retryable, got.Retryable, tc.msg)
		assert.Equal(t, "binance", got.Exchange)
	}
}

func TestClassifyByCodeBeforeMessage(t *testing.T) {
	c := NewClassifier()

	// coded fault wins even when the message would classify differently
	got := c.Classify(codedFault{code: "-2014", msg: "timeout while signing"}, "binance", "req-1")
	assert.Equal(t, models.ErrAuthentication, got.Category)
	assert.False(t, got.Retryable)
	assert.Equal(t, "-2014", got.Code)
	assert.Equal(t, "req-1", got.RequestID)
}

func TestClassifyUnknownCodeFallsThroughToMessage(t *testing.T) {
	c := NewClassifier()
	got := c.Classify(codedFault{code: "E999", msg: "gateway timeout"}, "kraken", "")
	assert.Equal(t, models.ErrNetwork, got.Category)
}

func TestClassifyPassthrough(t *testing.T) {
	c := NewClassifier()
	orig := &models.ExchangeError{Category: models.ErrRateLimit, Retryable: true, Message: "slow down"}
	got := c.Classify(fmt.Errorf("call failed: %w", orig), "kraken", "req-9")
	assert.Same(t, orig, got)
	assert.Equal(t, "kraken", got.Exchange)
	assert.Equal(t, "req-9", got.RequestID)
}

func TestClassifyWrapsCause(t *testing.T) {
	c := NewClassifier()
	cause := errors.New("read: connection reset by peer")
	got := c.Classify(cause, "binance", "")
	assert.ErrorIs(t, got, cause)
}

func TestShouldRetryBudget(t *testing.T) {
	c := NewClassifier()
	e := &models.ExchangeError{Category: models.ErrNetwork, Retryable: true}

	assert.True(t, c.ShouldRetry(e, 0))
	assert.True(t, c.ShouldRetry(e, 2))
	assert.False(t, c.ShouldRetry(e, 3))
}

func TestShouldRetryTerminalCategories(t *testing.T) {
	c := NewClassifier()
	for _, cat := range []models.ErrorCategory{
		models.ErrAuthentication, models.ErrValidation, models.ErrUnknown,
	} {
		e := &models.ExchangeError{Category: cat, Retryable: true}
		assert.False(t, c.ShouldRetry(e, 0), string(cat))
	}
}

func TestBackoffDelay(t *testing.T) {
	c := NewClassifier()

	require.Equal(t, time.Second, c.BackoffDelay(0))
	require.Equal(t, 2*time.Second, c.BackoffDelay(1))
	require.Equal(t, 4*time.Second, c.BackoffDelay(2))
	require.Equal(t, 8*time.Second, c.BackoffDelay(3))
	// clamped
	require.Equal(t, 10*time.Second, c.BackoffDelay(4))
	require.Equal(t, 10*time.Second, c.BackoffDelay(10))
}

func TestBackoffDelayCustomPolicy(t *testing.T) {
	c := NewClassifier(WithPolicy(Policy{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 3,
	}))
	assert.Equal(t, 100*time.Millisecond, c.BackoffDelay(0))
	assert.Equal(t, 300*time.Millisecond, c.BackoffDelay(1))
	assert.Equal(t, 900*time.Millisecond, c.BackoffDelay(2))
	assert.Equal(t, time.Second, c.BackoffDelay(3))
}

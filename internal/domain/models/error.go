package models

import "fmt"

// ErrorCategory is the normalized fault taxonomy. Risk and intake
// rejections are not faults and never carry a category.
type ErrorCategory string

const (
	ErrNetwork        ErrorCategory = "network"
	ErrAuthentication ErrorCategory = "authentication"
	ErrRateLimit      ErrorCategory = "rate_limit"
	ErrValidation     ErrorCategory = "validation"
	ErrServer         ErrorCategory = "server"
	ErrUnknown        ErrorCategory = "unknown"
)

// ExchangeError is a classified adapter fault. Never mutated after
// creation; the classifier is the only producer.
type ExchangeError struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	Exchange  string        `json:"exchange"`
	Category  ErrorCategory `json:"category"`
	Retryable bool          `json:"retryable"`
	Timestamp int64         `json:"timestamp"` // ms since epoch
	RequestID string        `json:"request_id,omitempty"`

	// Attempts counts exchanges tried before the error surfaced; set by
	// the router on terminal failure only.
	Attempts int `json:"attempts,omitempty"`

	cause error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s [%s/%s]: %s", e.Exchange, e.Category, e.Code, e.Message)
}

// Unwrap exposes the original fault for errors.Is/As chains.
func (e *ExchangeError) Unwrap() error { return e.cause }

// WithCause attaches the originating fault and returns the error.
func (e *ExchangeError) WithCause(err error) *ExchangeError {
	e.cause = err
	return e
}

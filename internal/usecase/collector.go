package usecase

import (
	"context"
	"time"

	"CoinRoute/internal/domain/models"
	drepo "CoinRoute/internal/domain/repository"
	mid "CoinRoute/internal/middleware"
)

// reconnectRetryWait spaces out attempts when the stream's own
// reconnect fails immediately.
const reconnectRetryWait = 500 * time.Millisecond

// SignalCollector reads the strategy engine's stream and feeds the
// buffered intake path. A broken stream reconnects in place; the rest
// of the pipeline never notices.
type SignalCollector struct {
	stream  drepo.SignalStream
	buffer  *mid.SignalBuffer
	metrics drepo.Metrics
}

// NewSignalCollector creates a new SignalCollector instance.
func NewSignalCollector(stream drepo.SignalStream, buffer *mid.SignalBuffer, metrics drepo.Metrics) *SignalCollector {
	return &SignalCollector{stream: stream, buffer: buffer, metrics: metrics}
}

// IsConnected returns true if the signal stream is connected.
func (c *SignalCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *SignalCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.buffer.Start(ctx)
	sigCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sigCh, errCh)
	return nil
}

func (c *SignalCollector) consume(ctx context.Context, sigCh <-chan *models.Signal, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			if ok {
				c.metrics.RecordError("stream")
			}
			if sigCh, errCh = c.reconnect(ctx); sigCh == nil {
				return
			}
		case sig, ok := <-sigCh:
			if !ok {
				if sigCh, errCh = c.reconnect(ctx); sigCh == nil {
					return
				}
				continue
			}
			if sig == nil {
				continue
			}
			if err := c.buffer.Push(sig); err != nil {
				c.metrics.RecordError("buffer_push")
			}
		}
	}
}

// reconnect keeps retrying until the stream is back or the context
// ends, in which case it returns nil channels.
func (c *SignalCollector) reconnect(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	for {
		if err := c.stream.Reconnect(ctx); err == nil {
			return c.stream.Read(ctx)
		}
		c.metrics.RecordError("stream_reconnect")
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(reconnectRetryWait):
		}
	}
}

// Shutdown stops the buffer and closes the stream.
func (c *SignalCollector) Shutdown(ctx context.Context) error {
	c.buffer.Stop()
	return c.stream.Close()
}

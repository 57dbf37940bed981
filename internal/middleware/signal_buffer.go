package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
	"CoinRoute/pkg/logger"
)

// Sink is the minimal intake surface the buffer feeds.
type Sink interface {
	Submit(sig *models.Signal) (*models.RankedSignal, error)
}

// SignalBuffer sits between the external signal sources and the intake.
// It absorbs bursts into a bounded channel; when the channel is full the
// oldest buffered signal is dropped in favor of the newest, since stale
// signals lose value fastest.
type SignalBuffer struct {
	sink    Sink
	metrics domrepo.Metrics
	log     *logger.Logger

	ch      chan *models.Signal
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type Option func(*SignalBuffer)

// WithBufferSize sets the burst buffer size.
func WithBufferSize(n int) Option {
	return func(b *SignalBuffer) {
		if n > 0 {
			b.ch = make(chan *models.Signal, n)
		}
	}
}

func NewSignalBuffer(sink Sink, metrics domrepo.Metrics, log *logger.Logger, opts ...Option) *SignalBuffer {
	b := &SignalBuffer{
		sink:    sink,
		metrics: metrics,
		log:     log,
		ch:      make(chan *models.Signal, 256),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the drain loop feeding the intake.
func (b *SignalBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case sig := <-b.ch:
				if sig == nil {
					continue
				}
				if _, err := b.sink.Submit(sig); err != nil {
					b.metrics.RecordError("intake_submit")
					b.log.Error("intake submit failed", logger.Error(err))
				}
			}
		}
	}()
}

// Stop halts the drain loop. Buffered signals are discarded.
func (b *SignalBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.started = false
	close(b.stopCh)
}

// Push offers a signal to the buffer, evicting the oldest entry when
// full.
func (b *SignalBuffer) Push(sig *models.Signal) error {
	if sig == nil {
		return fmt.Errorf("signal nil")
	}
	for {
		select {
		case b.ch <- sig:
			return nil
		default:
			select {
			case dropped := <-b.ch:
				b.metrics.RecordError("signal_buffer_evict")
				b.log.Warn("signal evicted under backpressure",
					logger.String("symbol", dropped.Symbol),
					logger.String("id", dropped.ID))
			default:
			}
		}
	}
}

// Depth reports the number of buffered signals.
func (b *SignalBuffer) Depth() int { return len(b.ch) }

// KafkaSignalHandler adapts the buffer to the Kafka consumer so signals
// can arrive over a topic as well as the WebSocket stream.
type KafkaSignalHandler struct {
	topic  string
	buffer *SignalBuffer
}

func NewKafkaSignalHandler(topic string, buffer *SignalBuffer) *KafkaSignalHandler {
	return &KafkaSignalHandler{topic: topic, buffer: buffer}
}

func (h *KafkaSignalHandler) Topic() string { return h.topic }

func (h *KafkaSignalHandler) Handle(_ context.Context, data []byte) error {
	var sig models.Signal
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}
	return h.buffer.Push(&sig)
}

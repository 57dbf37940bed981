package middleware

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
	"CoinRoute/pkg/logger"
)

type recordingSink struct {
	mu   sync.Mutex
	seen []string
}

func (s *recordingSink) Submit(sig *models.Signal) (*models.RankedSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, sig.ID)
	return &models.RankedSignal{Signal: sig}, nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *countingMetrics) RecordOrder(string, string, string)  {}
func (m *countingMetrics) RecordRetry(string, string)          {}
func (m *countingMetrics) RecordFailover(string, string)       {}
func (m *countingMetrics) RecordRejection(string, string)      {}
func (m *countingMetrics) RecordRateLimitWait(string, float64) {}
func (m *countingMetrics) RecordQueueDepth(int)                {}
func (m *countingMetrics) RecordCache(bool)                    {}
func (m *countingMetrics) RecordLatency(string, float64)       {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *countingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func sig(id string) *models.Signal {
	return &models.Signal{ID: id, Symbol: "BTC/USDT"}
}

func TestBufferEvictsOldestWhenFull(t *testing.T) {
	sink := &recordingSink{}
	metrics := &countingMetrics{}
	buf := NewSignalBuffer(sink, metrics, logger.Nop(), WithBufferSize(2))

	require.NoError(t, buf.Push(sig("a")))
	require.NoError(t, buf.Push(sig("b")))
	require.NoError(t, buf.Push(sig("c")))

	assert.Equal(t, 2, buf.Depth())
	assert.Equal(t, 1, metrics.errorCount("signal_buffer_evict"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	buf.Start(ctx)
	defer buf.Stop()

	assert.Eventually(t, func() bool {
		return len(sink.ids()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b", "c"}, sink.ids())
}

func TestBufferRejectsNilSignal(t *testing.T) {
	buf := NewSignalBuffer(&recordingSink{}, &countingMetrics{}, logger.Nop())
	assert.Error(t, buf.Push(nil))
}

func TestKafkaSignalHandlerDecodesIntoBuffer(t *testing.T) {
	sink := &recordingSink{}
	buf := NewSignalBuffer(sink, &countingMetrics{}, logger.Nop())
	h := NewKafkaSignalHandler("signals", buf)

	assert.Equal(t, "signals", h.Topic())

	data, err := json.Marshal(models.Signal{ID: "sig-1", Symbol: "ETH/USDT"})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), data))
	assert.Equal(t, 1, buf.Depth())

	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
}

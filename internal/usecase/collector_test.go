package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/internal/domain/models"
	mid "CoinRoute/internal/middleware"
	"CoinRoute/pkg/logger"
)

// scriptedStream fails its first read, then refuses a configurable
// number of reconnects before recovering and serving signals again.
type scriptedStream struct {
	mu             sync.Mutex
	reads          int
	reconnects     int
	reconnectFails int
	failFirstRead  bool
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Close() error                    { return nil }
func (s *scriptedStream) IsConnected() bool               { return true }

func (s *scriptedStream) Read(context.Context) (<-chan *models.Signal, <-chan error) {
	s.mu.Lock()
	s.reads++
	first := s.reads == 1
	s.mu.Unlock()

	sigCh := make(chan *models.Signal, 1)
	errCh := make(chan error, 1)
	if first {
		if s.failFirstRead {
			errCh <- errors.New("socket gone")
		}
		close(errCh)
		close(sigCh)
		return sigCh, errCh
	}
	sigCh <- &models.Signal{ID: "sig-after-recovery", Symbol: "BTC/USDT"}
	return sigCh, errCh
}

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	if s.reconnects <= s.reconnectFails {
		return errors.New("dial refused")
	}
	return nil
}

func (s *scriptedStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

type collectingSink struct {
	mu   sync.Mutex
	seen []string
}

func (s *collectingSink) Submit(sig *models.Signal) (*models.RankedSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, sig.ID)
	return &models.RankedSignal{Signal: sig}, nil
}

func (s *collectingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func startCollector(t *testing.T, stream *scriptedStream) *collectingSink {
	t.Helper()
	sink := &collectingSink{}
	buffer := mid.NewSignalBuffer(sink, nopMetrics{}, logger.Nop())
	collector := NewSignalCollector(stream, buffer, nopMetrics{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, collector.Start(ctx))
	return sink
}

func TestCollectorKeepsRetryingAfterFailedReconnect(t *testing.T) {
	stream := &scriptedStream{failFirstRead: true, reconnectFails: 2}
	sink := startCollector(t, stream)

	assert.Eventually(t, func() bool {
		return len(sink.ids()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"sig-after-recovery"}, sink.ids())
	assert.GreaterOrEqual(t, stream.reconnectCount(), 3)
}

func TestCollectorReconnectsWhenChannelsCloseWithoutError(t *testing.T) {
	stream := &scriptedStream{}
	sink := startCollector(t, stream)

	assert.Eventually(t, func() bool {
		return len(sink.ids()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, stream.reconnectCount())
}

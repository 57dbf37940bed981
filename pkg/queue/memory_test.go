package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinRoute/pkg/logger"
)

type stubJob struct {
	name     string
	msgType  string
	failures int

	mu       sync.Mutex
	attempts int
	payloads []interface{}
}

func (j *stubJob) Name() string { return j.name }
func (j *stubJob) Type() string { return j.msgType }

func (j *stubJob) Handle(_ context.Context, payload interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts++
	if j.attempts <= j.failures {
		return errors.New("transient")
	}
	j.payloads = append(j.payloads, payload)
	return nil
}

func (j *stubJob) handled() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.payloads)
}

func newTestQueue(t *testing.T, jobs ...Job) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(logger.Nop(), &Config{
		Workers:    1,
		QueueSize:  8,
		RetryLimit: 2,
		RetryDelay: time.Millisecond,
	}, jobs)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func TestQueueDispatchesToRegisteredJob(t *testing.T) {
	job := &stubJob{name: "audit", msgType: "audit.write"}
	q := newTestQueue(t, job)

	require.NoError(t, q.PublishMessage(context.Background(), "audit.write", "payload"))

	assert.Eventually(t, func() bool { return job.handled() == 1 }, time.Second, time.Millisecond)
}

func TestQueueRejectsUnknownType(t *testing.T) {
	q := newTestQueue(t, &stubJob{name: "audit", msgType: "audit.write"})

	err := q.PublishMessage(context.Background(), "no.such.type", nil)
	assert.ErrorContains(t, err, "no job registered")
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), nil, []Job{&stubJob{name: "audit", msgType: "audit.write"}})

	err := q.PublishMessage(context.Background(), "audit.write", nil)
	assert.ErrorContains(t, err, "not running")
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	job := &stubJob{name: "flaky", msgType: "flaky.write", failures: 2}
	q := newTestQueue(t, job)

	require.NoError(t, q.PublishMessage(context.Background(), "flaky.write", 7))

	assert.Eventually(t, func() bool { return job.handled() == 1 }, time.Second, time.Millisecond)
	job.mu.Lock()
	defer job.mu.Unlock()
	assert.Equal(t, 3, job.attempts)
}

func TestParsePayload(t *testing.T) {
	type order struct {
		ID     string  `json:"id"`
		Amount float64 `json:"amount"`
	}

	direct, err := ParsePayload[order](order{ID: "o-1", Amount: 2.5})
	require.NoError(t, err)
	assert.Equal(t, "o-1", direct.ID)

	ptr, err := ParsePayload[order](&order{ID: "o-2"})
	require.NoError(t, err)
	assert.Equal(t, "o-2", ptr.ID)

	fromMap, err := ParsePayload[order](map[string]interface{}{"id": "o-3", "amount": 1.0})
	require.NoError(t, err)
	assert.Equal(t, "o-3", fromMap.ID)
	assert.Equal(t, 1.0, fromMap.Amount)

	_, err = ParsePayload[order](42)
	assert.ErrorContains(t, err, "invalid payload type")
}

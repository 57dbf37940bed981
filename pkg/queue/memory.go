package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CoinRoute/pkg/logger"
)

// MemoryQueue is an in-process worker pool behind the Service surface.
// Messages live in a bounded channel; a full channel rejects the publish
// rather than blocking the producer.
type MemoryQueue struct {
	logger    *logger.Logger
	config    *Config
	jobs      map[string]Job
	messages  chan *Message
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	seq       uint64
}

// NewMemoryQueue creates an in-process queue.
func NewMemoryQueue(lgr *logger.Logger, config *Config, jobs []Job) *MemoryQueue {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &MemoryQueue{
		logger:   lgr,
		config:   config,
		jobs:     make(map[string]Job),
		messages: make(chan *Message, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, job := range jobs {
		q.RegisterJob(job)
	}
	return q
}

// RegisterJob registers a single job.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start launches the worker pool.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop drains in-flight work and waits up to the context deadline.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.cancel()
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.logger.Info("queue stopped gracefully")
		return nil
	}
}

// PublishMessage enqueues a message (implements Service).
func (q *MemoryQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	msg := &Message{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), atomic.AddUint64(&q.seq, 1)),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case q.messages <- msg:
		return nil
	default:
		return fmt.Errorf("queue full, message %s dropped", msgType)
	}
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	q.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-q.ctx.Done():
			// drain what is already buffered before exiting
			for {
				select {
				case msg := <-q.messages:
					q.process(msg)
				default:
					return
				}
			}
		case msg := <-q.messages:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg *Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()
	if job == nil {
		return
	}

	err := job.Handle(context.Background(), msg.Payload)
	if err == nil {
		return
	}

	msg.Attempts++
	if msg.Attempts > q.config.RetryLimit {
		q.logger.Error("message dropped after retries",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err))
		return
	}

	q.logger.Warn("message handling failed, requeueing",
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))

	timer := time.NewTimer(q.config.RetryDelay)
	defer timer.Stop()
	select {
	case <-q.ctx.Done():
	case <-timer.C:
	}
	select {
	case q.messages <- msg:
	default:
		q.logger.Error("queue full, retry dropped", logger.String("id", msg.ID))
	}
}

package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"CoinRoute/internal/domain/models"
	domrepo "CoinRoute/internal/domain/repository"
)

// IntakeConfig bounds signal admission.
type IntakeConfig struct {
	MaxSignalsPerMinute int
	MinConfidence       float64
	PriorityThreshold   float64
	AuditSize           int
}

type bucketKey struct {
	symbol string
	minute int64
}

// SignalIntake validates, rate-buckets, and prioritizes incoming signals
// into a ranked queue. Rejected signals are kept in a bounded audit ring.
type SignalIntake struct {
	mu      sync.Mutex
	cfg     IntakeConfig
	buckets map[bucketKey]int
	queue   []*models.RankedSignal // priority desc, arrival asc
	audit   []*models.RankedSignal // oldest first, bounded
	seq     uint64
	clock   domrepo.Clock
	metrics domrepo.Metrics
}

func NewSignalIntake(cfg IntakeConfig, clock domrepo.Clock, metrics domrepo.Metrics) *SignalIntake {
	if cfg.MaxSignalsPerMinute <= 0 {
		cfg.MaxSignalsPerMinute = 5
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 70
	}
	if cfg.PriorityThreshold <= 0 {
		cfg.PriorityThreshold = 85
	}
	if cfg.AuditSize <= 0 {
		cfg.AuditSize = 500
	}
	return &SignalIntake{
		cfg:     cfg,
		buckets: make(map[bucketKey]int),
		clock:   clock,
		metrics: metrics,
	}
}

// Submit admits a signal into the ranked queue or rejects it. Rejections
// are policy outcomes, not errors: the returned RankedSignal carries the
// status and reason list either way.
func (si *SignalIntake) Submit(sig *models.Signal) (*models.RankedSignal, error) {
	if sig == nil {
		return nil, fmt.Errorf("signal is nil")
	}

	si.mu.Lock()
	defer si.mu.Unlock()

	now := si.clock.Now()
	si.seq++
	rs := &models.RankedSignal{
		Signal:     sig,
		Status:     models.SignalPending,
		ReceivedAt: models.NowMillis(now),
		Seq:        si.seq,
	}

	if errs := sig.Validate(); len(errs) > 0 {
		return si.reject(rs, "validation", errs...), nil
	}

	si.pruneBuckets(now)
	key := bucketKey{symbol: sig.Symbol, minute: now.Unix() / 60}
	if si.buckets[key] >= si.cfg.MaxSignalsPerMinute {
		return si.reject(rs, "rate_limit",
			fmt.Sprintf("signal rate for %s exceeds %d per minute", sig.Symbol, si.cfg.MaxSignalsPerMinute)), nil
	}
	si.buckets[key]++

	if sig.Confidence < si.cfg.MinConfidence {
		return si.reject(rs, "confidence",
			fmt.Sprintf("confidence %.1f below minimum %.1f", sig.Confidence, si.cfg.MinConfidence)), nil
	}

	rs.Priority = si.score(sig)
	si.enqueue(rs)
	si.metrics.RecordQueueDepth(len(si.queue))
	return rs, nil
}

// Next pops the highest-priority pending signal, nil when the queue is
// empty. Ties keep arrival order.
func (si *SignalIntake) Next() *models.RankedSignal {
	si.mu.Lock()
	defer si.mu.Unlock()
	if len(si.queue) == 0 {
		return nil
	}
	rs := si.queue[0]
	si.queue = si.queue[1:]
	si.metrics.RecordQueueDepth(len(si.queue))
	return rs
}

// Pending returns a snapshot of the ranked queue.
func (si *SignalIntake) Pending() []*models.RankedSignal {
	si.mu.Lock()
	defer si.mu.Unlock()
	out := make([]*models.RankedSignal, len(si.queue))
	copy(out, si.queue)
	return out
}

// Audit returns the bounded history of resolved signals, oldest first.
func (si *SignalIntake) Audit() []*models.RankedSignal {
	si.mu.Lock()
	defer si.mu.Unlock()
	out := make([]*models.RankedSignal, len(si.audit))
	copy(out, si.audit)
	return out
}

// Resolve records the final status of a signal that left the queue.
func (si *SignalIntake) Resolve(rs *models.RankedSignal, status models.SignalStatus, reasons ...string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	rs.Status = status
	rs.Reasons = append(rs.Reasons, reasons...)
	si.record(rs)
}

func (si *SignalIntake) reject(rs *models.RankedSignal, stage string, reasons ...string) *models.RankedSignal {
	rs.Status = models.SignalRejected
	rs.Reasons = reasons
	si.record(rs)
	si.metrics.RecordRejection(stage, reasons[0])
	return rs
}

func (si *SignalIntake) record(rs *models.RankedSignal) {
	si.audit = append(si.audit, rs)
	if len(si.audit) > si.cfg.AuditSize {
		si.audit = si.audit[len(si.audit)-si.cfg.AuditSize:]
	}
}

// score derives the queue priority from confidence and the signal's
// risk/reward shape, clamped to [0,100].
func (si *SignalIntake) score(sig *models.Signal) float64 {
	p := sig.Confidence
	if sig.Confidence >= si.cfg.PriorityThreshold {
		p += 10
	}
	switch rr := sig.RiskReward(); {
	case rr >= 2:
		p += 5
	case rr < 1:
		p -= 10
	}
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

func (si *SignalIntake) enqueue(rs *models.RankedSignal) {
	i := sort.Search(len(si.queue), func(i int) bool {
		if si.queue[i].Priority != rs.Priority {
			return si.queue[i].Priority < rs.Priority
		}
		return si.queue[i].Seq > rs.Seq
	})
	si.queue = append(si.queue, nil)
	copy(si.queue[i+1:], si.queue[i:])
	si.queue[i] = rs
}

// pruneBuckets drops rate buckets older than five minutes.
func (si *SignalIntake) pruneBuckets(now time.Time) {
	cutoff := now.Unix()/60 - 5
	for k := range si.buckets {
		if k.minute < cutoff {
			delete(si.buckets, k)
		}
	}
}

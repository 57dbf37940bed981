package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ordersTotal     *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	failoversTotal  *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	rateLimitWait   *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	cacheTotal      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ordersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinroute_orders_total",
				Help: "Total number of orders placed, by exchange and final status",
			},
			[]string{"exchange", "symbol", "status"},
		),
		retriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinroute_retries_total",
				Help: "Total number of retried exchange calls",
			},
			[]string{"exchange", "category"},
		),
		failoversTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinroute_failovers_total",
				Help: "Total number of failovers between exchanges",
			},
			[]string{"from", "to"},
		),
		rejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinroute_rejections_total",
				Help: "Total number of signals rejected, by pipeline stage",
			},
			[]string{"stage"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinroute_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		rateLimitWait: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinroute_rate_limit_wait_seconds",
				Help:    "Time spent waiting on exchange rate limits",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"exchange"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "coinroute_signal_queue_depth",
				Help: "Number of ranked signals waiting in the intake queue",
			},
		),
		cacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinroute_market_cache_total",
				Help: "Market data cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinroute_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordOrder records an order outcome on an exchange.
func (r *Recorder) RecordOrder(exchange, symbol, status string) {
	r.ordersTotal.WithLabelValues(exchange, symbol, status).Inc()
}

// RecordRetry records a retried call by fault category.
func (r *Recorder) RecordRetry(exchange, category string) {
	r.retriesTotal.WithLabelValues(exchange, category).Inc()
}

// RecordFailover records a switch from one exchange to the next.
func (r *Recorder) RecordFailover(from, to string) {
	r.failoversTotal.WithLabelValues(from, to).Inc()
}

// RecordRejection records a rejected signal. Only the stage is labeled;
// reasons are free text and stay out of the label set.
func (r *Recorder) RecordRejection(stage, _ string) {
	r.rejectionsTotal.WithLabelValues(stage).Inc()
}

// RecordRateLimitWait records time spent parked on a rate limit.
func (r *Recorder) RecordRateLimitWait(exchange string, seconds float64) {
	r.rateLimitWait.WithLabelValues(exchange).Observe(seconds)
}

// RecordQueueDepth records the intake queue depth.
func (r *Recorder) RecordQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// RecordCache records a market data cache lookup.
func (r *Recorder) RecordCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheTotal.WithLabelValues(outcome).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

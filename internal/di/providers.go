package di

import (
	"context"
	"fmt"
	"time"

	"CoinRoute/internal/domain/repository"
	"CoinRoute/internal/handler/api"
	mid "CoinRoute/internal/middleware"
	internalrepo "CoinRoute/internal/repository"
	"CoinRoute/internal/service/cache"
	"CoinRoute/internal/service/exchanges"
	"CoinRoute/internal/service/faults"
	"CoinRoute/internal/service/market"
	"CoinRoute/internal/service/ratelimit"
	"CoinRoute/internal/service/stream"
	"CoinRoute/internal/usecase"
	pkgch "CoinRoute/pkg/clickhouse"
	"CoinRoute/pkg/config"
	pkgkafka "CoinRoute/pkg/kafka"
	"CoinRoute/pkg/logger"
	"CoinRoute/pkg/metrics"
	"CoinRoute/pkg/queue"
	"CoinRoute/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClock supplies the process clock.
func ProvideClock() repository.Clock {
	return repository.WallClock
}

// ProvideCache picks the market-data cache backend from config.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Type == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	}
	return cache.NewMemory(), nil
}

// ProvideRateLimiter builds the shared per-exchange limiter, with
// account-level cap overrides applied.
func ProvideRateLimiter(cfg *config.Config, clock repository.Clock) *ratelimit.Limiter {
	return exchanges.Limiter(cfg, clock)
}

// ProvideClassifier builds the error classifier from the retry policy.
func ProvideClassifier(cfg *config.Config) *faults.Classifier {
	return faults.NewClassifier(faults.WithPolicy(faults.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
		Multiplier: cfg.Retry.Multiplier,
	}))
}

// ProvideAdapters instantiates every configured exchange adapter.
func ProvideAdapters(cfg *config.Config, log *logger.Logger, clock repository.Clock) (map[string]repository.ExchangeAdapter, error) {
	return exchanges.Build(cfg, log, clock)
}

// ProvideRouter creates the exchange router.
func ProvideRouter(
	cfg *config.Config,
	adapters map[string]repository.ExchangeAdapter,
	limiter *ratelimit.Limiter,
	classifier *faults.Classifier,
	mdCache cache.Service,
	log *logger.Logger,
	m repository.Metrics,
	clock repository.Clock,
) (*usecase.ExchangeRouter, error) {
	return usecase.NewExchangeRouter(usecase.RouterConfig{
		Primary:      cfg.Exchanges.Primary,
		Fallbacks:    cfg.Exchanges.Fallbacks,
		CacheTTL:     cfg.Router.CacheTTL,
		MinOrderSize: cfg.Router.MinOrderSize,
		MaxOrderSize: cfg.Router.MaxOrderSize,
	}, adapters, limiter, classifier, mdCache, log, m, clock)
}

// ProvideIntake creates the signal intake queue.
func ProvideIntake(cfg *config.Config, clock repository.Clock, m repository.Metrics) *usecase.SignalIntake {
	return usecase.NewSignalIntake(usecase.IntakeConfig{
		MaxSignalsPerMinute: cfg.Intake.MaxSignalsPerMinute,
		MinConfidence:       cfg.Intake.MinConfidence,
		PriorityThreshold:   cfg.Intake.PriorityThreshold,
		AuditSize:           cfg.Intake.AuditSize,
	}, clock, m)
}

// ProvideEstimator reads advisory market figures through the router.
func ProvideEstimator(router *usecase.ExchangeRouter, clock repository.Clock) repository.MarketEstimator {
	return market.NewEstimator(router, clock)
}

// ProvideRiskGate creates the risk gate from config limits.
func ProvideRiskGate(cfg *config.Config, est repository.MarketEstimator, clock repository.Clock, m repository.Metrics) *usecase.RiskGate {
	return usecase.NewRiskGate(usecase.RiskConfig{
		MaxRiskPerTrade:     cfg.Risk.MaxRiskPerTrade,
		MaxDailyLoss:        cfg.Risk.MaxDailyLoss,
		MaxDrawdown:         cfg.Risk.MaxDrawdown,
		MaxConcurrentTrades: cfg.Risk.MaxConcurrentTrades,
		MaxDailyTrades:      cfg.Risk.MaxDailyTrades,
		MinConfidence:       cfg.Risk.MinConfidence,
		MaxLeverage:         cfg.Risk.MaxLeverage,
		MaxPositionSize:     cfg.Risk.MaxPositionSize,
		CorrelationLimit:    cfg.Risk.CorrelationLimit,
		VolatilityLimit:     cfg.Risk.VolatilityLimit,
		LiquidityThreshold:  cfg.Risk.LiquidityThreshold,
		MinOrderValue:       cfg.Risk.MinOrderValue,
	}, est, clock, m)
}

// ProvideSignalStream creates the strategy-engine WebSocket client.
func ProvideSignalStream(cfg *config.Config, log *logger.Logger) repository.SignalStream {
	return stream.New(stream.Config{
		URL:            cfg.Stream.URL,
		APIKey:         cfg.Stream.APIKey,
		Channels:       cfg.Stream.Channels,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		PingInterval:   cfg.Stream.PingInterval,
		BufferSize:     cfg.Stream.BufferSize,
	}, log)
}

// ProvideSignalBuffer creates the burst buffer feeding the intake.
func ProvideSignalBuffer(intake *usecase.SignalIntake, m repository.Metrics, log *logger.Logger, cfg *config.Config) *mid.SignalBuffer {
	return mid.NewSignalBuffer(intake, m, log, mid.WithBufferSize(cfg.Stream.BufferSize))
}

// ProvideCollector creates the stream collector use case.
func ProvideCollector(s repository.SignalStream, buffer *mid.SignalBuffer, m repository.Metrics) *usecase.SignalCollector {
	return usecase.NewSignalCollector(s, buffer, m)
}

// ProvideClickHouseClient creates a ClickHouse client when the backend
// is ClickHouse, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	schema := append(
		[]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.Schema(cfg.ClickHouse.Database+".orders")...,
	)
	if err := client.InitSchema(ctx, schema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the backend is
// Kafka, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the inbound-signal consumer when the
// backend is Kafka, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetFrom),
		pkgkafka.WithConsumerLogger(log),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSignalHandler routes inbound Kafka signals into the buffer.
func ProvideSignalHandler(cfg *config.Config, buffer *mid.SignalBuffer) pkgkafka.MessageHandler {
	if cfg.Backend.Type != "kafka" {
		return nil
	}
	return mid.NewKafkaSignalHandler(cfg.Kafka.Consumer.Topic, buffer)
}

// ProvideStorage picks the order audit store for the configured backend.
func ProvideStorage(cfg *config.Config, chClient *pkgch.Client) repository.Storage {
	if cfg.Backend.Type == "clickhouse" && chClient != nil {
		return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.Database+".orders")
	}
	return internalrepo.NoopStorage{}
}

// ProvidePublisher picks the order event publisher for the configured
// backend.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if cfg.Backend.Type == "kafka" && producer != nil {
		return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	}
	return internalrepo.NoopPublisher{}
}

// ProvidePersistQueue builds the async persistence queue with the
// order and rejection jobs registered.
func ProvidePersistQueue(
	cfg *config.Config,
	log *logger.Logger,
	store repository.Storage,
	pub repository.Publisher,
) *queue.MemoryQueue {
	return queue.NewMemoryQueue(log, &queue.Config{
		Workers:    2,
		QueueSize:  cfg.Backend.BatchSize * 4,
		RetryLimit: 3,
		RetryDelay: time.Second,
	}, []queue.Job{
		internalrepo.NewOrderPersistJob(store, pub),
		internalrepo.NewRejectionPersistJob(pub),
	})
}

// ProvidePipeline creates the order pipeline use case.
func ProvidePipeline(
	cfg *config.Config,
	intake *usecase.SignalIntake,
	gate *usecase.RiskGate,
	router *usecase.ExchangeRouter,
	persist *queue.MemoryQueue,
	m repository.Metrics,
	clock repository.Clock,
	log *logger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineConfig{
		Workers:        cfg.Intake.Workers,
		PortfolioValue: cfg.Risk.PortfolioValue,
	}, intake, gate, router, persist, m, clock, log)
}

// ProvideOrdersHandler creates the HTTP API handler.
func ProvideOrdersHandler(
	log *logger.Logger,
	intake *usecase.SignalIntake,
	gate *usecase.RiskGate,
	router *usecase.ExchangeRouter,
	store repository.Storage,
	s repository.SignalStream,
) *api.OrdersHandler {
	return api.NewOrdersHandler(log, intake, gate, router, store, s)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	collector *usecase.SignalCollector,
	pipeline *usecase.Pipeline,
	gate *usecase.RiskGate,
	persist *queue.MemoryQueue,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	handler *api.OrdersHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewLoggingHook(log))
	}
	app := server.New(cfg, log, collector, pipeline, gate, persist, consumer, kh, producer, chClient)
	app.SetHTTPHandler(handler)
	return app
}

package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CoinRoute/internal/usecase"
	pkgch "CoinRoute/pkg/clickhouse"
	"CoinRoute/pkg/config"
	xhttp "CoinRoute/pkg/http"
	pkgkafka "CoinRoute/pkg/kafka"
	applogger "CoinRoute/pkg/logger"
	"CoinRoute/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	collector *usecase.SignalCollector
	pipeline  *usecase.Pipeline
	gate      *usecase.RiskGate
	persist   *queue.MemoryQueue
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	producer  *pkgkafka.Producer
	chClient  *pkgch.Client

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.SignalCollector,
	pipeline *usecase.Pipeline,
	gate *usecase.RiskGate,
	persist *queue.MemoryQueue,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		collector: collector,
		pipeline:  pipeline,
		gate:      gate,
		persist:   persist,
		consumer:  consumer,
		kh:        kh,
		producer:  producer,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	)

	// Start signal collector
	if a.cfg.Stream.URL != "" {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("collector error", applogger.Error(err))
			}
		}()
		a.log.Info("collector started", applogger.Strings("channels", a.cfg.Stream.Channels))
	}

	// Start the persistence queue, then the pipeline workers feeding it
	if err := a.persist.Start(); err != nil {
		return err
	}
	a.pipeline.Start(ctx)

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Daily risk counters roll over at midnight UTC
	go a.dailyReset(ctx)

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started",
		applogger.String("host", a.cfg.Server.Host),
		applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// dailyReset clears the risk gate's per-day trade and loss counters at
// each UTC midnight.
func (a *App) dailyReset(ctx context.Context) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			a.gate.ResetDaily()
			a.log.Info("daily risk counters reset")
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	// Stop collector (buffer + stream)
	if a.cfg.Stream.URL != "" {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Stop pipeline workers, then drain the persistence queue
	a.pipeline.Stop()
	drainCtx, drainCancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	if err := a.persist.Stop(drainCtx); err != nil {
		a.log.Warn("persistence queue stop error", applogger.Error(err))
	}
	drainCancel()

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	models "StockCast/internal/domain/models"
	dservice "StockCast/internal/domain/service"
	"StockCast/internal/usecase"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"
)

// App encapsulates the application lifecycle: restore served models, start
// the bar consumer, the training queue worker, the live quote collector,
// and the HTTP server, then block until interrupted.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    xhttp.Handler
	bank       dservice.ModelBank
	collector  *usecase.QuoteCollector
	consumer   *pkgkafka.Consumer
	bars       *usecase.BarIngestor
	trainQueue *queue.RedisQueue
	producer   *pkgkafka.Producer
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	handler xhttp.Handler,
	bank dservice.ModelBank,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	bars *usecase.BarIngestor,
	trainQueue *queue.RedisQueue,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:        cfg,
		logger:     lgr,
		handler:    handler,
		bank:       bank,
		collector:  collector,
		consumer:   consumer,
		bars:       bars,
		trainQueue: trainQueue,
		producer:   producer,
		chClient:   chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	// Restore the last promoted artifact per region so serving survives
	// restarts. A region with no artifact yet serves nothing until the
	// first train completes.
	for _, region := range a.cfg.Regions {
		if err := a.bank.Restore(ctx, region); err != nil {
			if errors.Is(err, models.ErrModelUnavailable) {
				l.Warn("no stored model for region",
					applogger.String("region", region))
				continue
			}
			return err
		}
		l.Info("model restored", applogger.String("region", region))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Training queue worker. Retrains run here, never on the serving path.
	if a.trainQueue != nil {
		if err := a.trainQueue.Start(); err != nil {
			l.Error("training queue start error", applogger.Error(err))
			return err
		}
		l.Info("training queue worker started",
			applogger.Int("workers", a.cfg.Learner.QueueWorkers))
	}

	// Daily bar consumer.
	if a.consumer != nil && a.bars != nil {
		a.consumer.RegisterHandler(a.bars)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("bar consumer started", applogger.String("topic", a.bars.Topic()))
	}

	// Live quote collector. Optional: no WebSocket URL means daily-only mode.
	if a.collector != nil && a.cfg.MarketData.WebSocketURL != "" {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("quote collector error", applogger.Error(err))
			}
		}()
		l.Info("quote collector started",
			applogger.Strings("symbols", a.cfg.MarketData.Symbols))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops all services in reverse start order.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			l.Warn("quote collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.trainQueue != nil {
		if err := a.trainQueue.Stop(shutdownCtx); err != nil {
			l.Warn("training queue stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}

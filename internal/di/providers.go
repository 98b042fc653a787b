package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	domrepo "StockCast/internal/domain/repository"
	dservice "StockCast/internal/domain/service"
	"StockCast/internal/handler/api"
	mid "StockCast/internal/middleware"
	internalrepo "StockCast/internal/repository"
	icache "StockCast/internal/service/cache"
	"StockCast/internal/service/features"
	"StockCast/internal/service/learner"
	"StockCast/internal/service/marketdata"
	"StockCast/internal/service/modelbank"
	"StockCast/internal/service/regime"
	"StockCast/internal/usecase"
	"StockCast/pkg/cache"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/metrics"
	"StockCast/pkg/queue"
	"StockCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{
		Level:  "info",
		Format: format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
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

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvidePriceStore creates the ClickHouse price store.
func ProvidePriceStore(client *pkgch.Client) domrepo.PriceStore {
	return internalrepo.NewCHPriceStore(client)
}

// ProvideLedgerStore creates the ClickHouse prediction ledger.
func ProvideLedgerStore(client *pkgch.Client) domrepo.LedgerStore {
	return internalrepo.NewCHLedger(client)
}

// ProvidePerformanceStore creates the ClickHouse performance log.
func ProvidePerformanceStore(client *pkgch.Client) domrepo.PerformanceStore {
	return internalrepo.NewCHPerformance(client)
}

// ProvideArtifactStore creates the filesystem model artifact store.
func ProvideArtifactStore(cfg *config.Config) (domrepo.ArtifactStore, error) {
	return internalrepo.NewFSArtifactStore(cfg.Models.ArtifactDir)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

// ProvideKafkaConsumer creates the Kafka consumer for the bars topic.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
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

// ProvideNotifier creates the Kafka notifier for the recommendation and
// performance topics.
func ProvideNotifier(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Notifier {
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.RecommendTopic, cfg.Kafka.PerformanceTopic)
}

// ProvideRedisCache creates the Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port %q: %w", portStr, err)
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideSnapshotCache wraps a layered memory-over-Redis cache as a
// history snapshot store.
func ProvideSnapshotCache(rc *cache.RedisCache, cfg *config.Config) domrepo.SnapshotCache {
	layered := cache.NewLayeredCache(rc)
	return internalrepo.NewCacheSnapshot(layered, cfg.MarketData.SnapshotTTL)
}

// ProvideQueuePublisher creates the producer side of the training queue.
func ProvideQueuePublisher(lgr *applogger.Logger, rc *cache.RedisCache) queue.QueueService {
	return queue.NewRedisPublisher(lgr, rc.Client())
}

// ProvideQueueConsumer creates the worker side of the training queue with
// the retrain job registered.
func ProvideQueueConsumer(
	lgr *applogger.Logger,
	cfg *config.Config,
	rc *cache.RedisCache,
	trainJob *usecase.TrainJob,
) *queue.RedisQueue {
	return queue.NewRedisConsumer(lgr, &queue.QueueConfig{
		Workers: cfg.Learner.QueueWorkers,
	}, rc.Client(), []queue.Job{trainJob})
}

// ProvideFeatureBuilder creates the feature builder.
func ProvideFeatureBuilder(cfg *config.Config) dservice.FeatureBuilder {
	return features.New(cfg.Models.MinHistory)
}

// ProvideRegimeDetector creates the regime detector from config thresholds.
func ProvideRegimeDetector(cfg *config.Config) dservice.RegimeDetector {
	return regime.New(regime.Thresholds{
		Window:        cfg.Regime.Window,
		TrendBull:     cfg.Regime.TrendBull,
		TrendBear:     cfg.Regime.TrendBear,
		VolatilityLow: cfg.Regime.VolatilityLow,
		VolatilityHi:  cfg.Regime.VolatilityHi,
	})
}

// ProvideModelBank creates the per-region model bank.
func ProvideModelBank(
	cfg *config.Config,
	store domrepo.ArtifactStore,
	lgr *applogger.Logger,
	m domrepo.Metrics,
) dservice.ModelBank {
	return modelbank.New(cfg, store, lgr, m)
}

// ProvideActualsSource derives realized returns from stored prices.
func ProvideActualsSource(prices domrepo.PriceStore) domrepo.ActualsSource {
	return marketdata.NewPriceActuals(prices)
}

// ProvideAdaptiveLearner creates the feedback-loop learner.
func ProvideAdaptiveLearner(
	cfg *config.Config,
	ledger domrepo.LedgerStore,
	actuals domrepo.ActualsSource,
	perf domrepo.PerformanceStore,
	prices domrepo.PriceStore,
	regimes dservice.RegimeDetector,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) dservice.AdaptiveLearner {
	return learner.New(cfg, ledger, actuals, perf, prices, regimes, m, lgr)
}

// ProvideHistoryClient creates the daily history fetcher.
func ProvideHistoryClient(
	cfg *config.Config,
	snapshot domrepo.SnapshotCache,
	lgr *applogger.Logger,
	m domrepo.Metrics,
) *marketdata.HistoryClient {
	return marketdata.NewHistoryClient(cfg, snapshot, lgr, m)
}

// ProvideMarketStream creates the live quote WebSocket stream.
func ProvideMarketStream(cfg *config.Config, lgr *applogger.Logger) domrepo.MarketStream {
	return marketdata.NewStream(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Symbols,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		lgr,
	)
}

// ProvideQuoteCollector creates the live quote collector with its
// validation and throttle pipeline.
func ProvideQuoteCollector(stream domrepo.MarketStream, m domrepo.Metrics) *usecase.QuoteCollector {
	pipe := mid.NewQuotePipeline(m)
	return usecase.NewQuoteCollector(stream, m, pipe)
}

// ProvidePredictionCycle creates the prediction cycle use case.
func ProvidePredictionCycle(
	cfg *config.Config,
	history *marketdata.HistoryClient,
	prices domrepo.PriceStore,
	builder dservice.FeatureBuilder,
	regimes dservice.RegimeDetector,
	bank dservice.ModelBank,
	ledger domrepo.LedgerStore,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) *usecase.PredictionCycle {
	return usecase.NewPredictionCycle(cfg, history, prices, builder, regimes, bank, ledger, notifier, m, lgr)
}

// ProvideLearningCycle creates the learning cycle use case.
func ProvideLearningCycle(
	cfg *config.Config,
	al dservice.AdaptiveLearner,
	notifier domrepo.Notifier,
	jobs queue.QueueService,
	m domrepo.Metrics,
	lgr *applogger.Logger,
) *usecase.LearningCycle {
	return usecase.NewLearningCycle(cfg, al, notifier, jobs, m, lgr)
}

// ProvideTrainJob creates the queued retrain job.
func ProvideTrainJob(
	cfg *config.Config,
	prices domrepo.PriceStore,
	builder dservice.FeatureBuilder,
	regimes dservice.RegimeDetector,
	bank dservice.ModelBank,
	perf domrepo.PerformanceStore,
	lgr *applogger.Logger,
) *usecase.TrainJob {
	return usecase.NewTrainJob(cfg, prices, builder, regimes, bank, perf, lgr)
}

// ProvideBarIngestor creates the daily bar Kafka handler.
func ProvideBarIngestor(cfg *config.Config, prices domrepo.PriceStore, m domrepo.Metrics) *usecase.BarIngestor {
	return usecase.NewBarIngestor(cfg.Kafka.BarsTopic, prices, m)
}

// ProvideResponseCache creates the in-process response cache.
func ProvideResponseCache() *icache.TTLCache {
	return icache.NewTTLCache()
}

// ProvideHandler creates the HTTP handler.
func ProvideHandler(
	lgr *applogger.Logger,
	predCycle *usecase.PredictionCycle,
	learn *usecase.LearningCycle,
	bank dservice.ModelBank,
	detector dservice.RegimeDetector,
	ledger domrepo.LedgerStore,
	prices domrepo.PriceStore,
	rcache *icache.TTLCache,
) *api.Handler {
	return api.NewHandler(lgr, predCycle, learn, bank, detector, ledger, prices, rcache)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	handler *api.Handler,
	bank dservice.ModelBank,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	bars *usecase.BarIngestor,
	trainQueue *queue.RedisQueue,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, lgr, handler, bank, collector, consumer, bars, trainQueue, producer, chClient)
}

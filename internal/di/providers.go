package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"PairScout/internal/domain/repository"
	"PairScout/internal/handler/api"
	mid "PairScout/internal/middleware"
	internalrepo "PairScout/internal/repository"
	"PairScout/internal/service/feed"
	svcmetrics "PairScout/internal/service/metrics"
	"PairScout/internal/service/reporting"
	"PairScout/internal/services/backtest"
	"PairScout/internal/services/coint"
	"PairScout/internal/services/embed"
	"PairScout/internal/services/signal"
	"PairScout/internal/services/simindex"
	"PairScout/internal/usecase"
	"PairScout/pkg/cache"
	pkgch "PairScout/pkg/clickhouse"
	"PairScout/pkg/config"
	pkgkafka "PairScout/pkg/kafka"
	"PairScout/pkg/logger"
	"PairScout/pkg/metrics"
	pkgqueue "PairScout/pkg/queue"
	"PairScout/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return logger.New(&logger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
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
	return client, nil
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideResultStore selects the sink backend and ensures its schema.
func ProvideResultStore(cfg *config.Config, chClient *pkgch.Client) (internalrepo.ResultStore, error) {
	if cfg.Sink.Type == "memory" {
		return internalrepo.NewMemorySink(), nil
	}

	sink := internalrepo.NewCHResultSink(chClient)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Init(ctx); err != nil {
		return nil, fmt.Errorf("result sink schema: %w", err)
	}
	return sink, nil
}

// ProvideResultSink exposes the store's write side.
func ProvideResultSink(store internalrepo.ResultStore) repository.ResultSink { return store }

// ProvideResultReader exposes the store's read side.
func ProvideResultReader(store internalrepo.ResultStore) repository.ResultReader { return store }

// ProvideHistoryProvider creates the ClickHouse daily history reader.
func ProvideHistoryProvider(chClient *pkgch.Client, lgr *logger.Logger) repository.HistoryProvider {
	h := internalrepo.NewCHHistoryProvider(chClient)
	h.SetLogger(lgr)
	return h
}

// ProvideSimIndex selects the similarity index implementation.
func ProvideSimIndex(cfg *config.Config) simindex.Index {
	if cfg.Discovery.IndexKind == "graph" {
		return simindex.NewGraphIndex()
	}
	return simindex.NewExactIndex()
}

// ProvideSignalConfig translates config thresholds into engine terms.
func ProvideSignalConfig(cfg *config.Config) signal.Config {
	return signal.Config{
		EntryZ:      cfg.Signals.EntryZ,
		ExitZ:       cfg.Signals.ExitZ,
		StopZ:       cfg.Signals.StopZ,
		MaxHold:     cfg.Signals.MaxHoldDays,
		Capital:     cfg.Signals.CapitalPerLeg,
		MinHalfLife: cfg.Discovery.MinHalfLifeDays,
		MaxHalfLife: cfg.Discovery.MaxHalfLifeDays,
	}
}

// ProvideCointEngine creates the cointegration test engine.
func ProvideCointEngine(cfg *config.Config, lgr *logger.Logger) *coint.Engine {
	return coint.NewEngine(coint.Config{MinObservations: cfg.Discovery.MinObservations}, lgr)
}

// ProvideBacktestEngine creates the replay engine.
func ProvideBacktestEngine(cfg *config.Config, sigCfg signal.Config) *backtest.Engine {
	return backtest.NewEngine(backtest.Config{
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageRate:   cfg.Backtest.SlippageRate,
		InitialCapital: cfg.Backtest.InitialCapital,
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
		Signal:         sigCfg,
	})
}

// ProvideDiscovery assembles the discovery pipeline.
func ProvideDiscovery(
	cfg *config.Config,
	history repository.HistoryProvider,
	index simindex.Index,
	engine *coint.Engine,
	bt *backtest.Engine,
	sink repository.ResultSink,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.Discovery {
	return usecase.NewDiscovery(
		usecase.DiscoveryConfig{
			WindowDays:      cfg.Discovery.WindowDays,
			MinObservations: cfg.Discovery.MinObservations,
			TopK:            cfg.Discovery.TopK,
			MaxTupleSize:    cfg.Discovery.MaxTupleSize,
			MaxPValue:       cfg.Discovery.MaxPValue,
			MinHalfLifeDays: cfg.Discovery.MinHalfLifeDays,
			MaxHalfLifeDays: cfg.Discovery.MaxHalfLifeDays,
			MinSharpe:       cfg.Discovery.MinSharpe,
			Workers:         cfg.Discovery.Workers,
		},
		history,
		embed.NewEmbedder(cfg.Discovery.WindowDays),
		index,
		engine,
		bt,
		sink,
		m,
		lgr,
	)
}

// ProvideSignalPublisher publishes signals to the Kafka signals topic.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideMonitor creates the live signal monitor.
func ProvideMonitor(
	sigCfg signal.Config,
	sink repository.ResultSink,
	pub repository.SignalPublisher,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.LiveMonitor {
	return usecase.NewLiveMonitor(sigCfg, sink, pub, m, lgr)
}

// ProvideQuotePipeline puts validation, ordering and throttling between
// the feed and the monitor.
func ProvideQuotePipeline(monitor *usecase.LiveMonitor, m repository.Metrics) *mid.QuotePipeline {
	return mid.NewQuotePipeline(monitor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideFeedStream creates the websocket quote stream.
func ProvideFeedStream(cfg *config.Config) repository.QuoteStream {
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Instruments,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideQuoteCollector creates the stream collector.
func ProvideQuoteCollector(
	stream repository.QuoteStream,
	pipe *mid.QuotePipeline,
	m repository.Metrics,
) *usecase.QuoteCollector {
	return usecase.NewQuoteCollector(stream, pipe, m)
}

// ProvideQuotesHandler registers the handler for the quotes topic.
func ProvideQuotesHandler(pipe *mid.QuotePipeline, m repository.Metrics, cfg *config.Config) *usecase.KafkaQuotesHandler {
	return usecase.NewKafkaQuotesHandler(cfg.Kafka.QuotesTopic, pipe, m)
}

// ProvideDiscoveryJob creates the queue job that runs discovery.
func ProvideDiscoveryJob(cfg *config.Config, disc *usecase.Discovery, monitor *usecase.LiveMonitor, lgr *logger.Logger) *usecase.DiscoveryJob {
	job := usecase.NewDiscoveryJob(disc, monitor, lgr)
	if cfg.Reporting.Enabled && cfg.Reporting.URL != "" {
		job.SetReporter(reporting.New(cfg.Reporting.URL, cfg.Reporting.Timeout, lgr))
	}
	return job
}

// ProvideJobQueue picks Redis when enabled, otherwise an inline queue
// with no persistence.
func ProvideJobQueue(cfg *config.Config, job *usecase.DiscoveryJob, lgr *logger.Logger) pkgqueue.QueueService {
	if !cfg.Redis.Enabled {
		return pkgqueue.NewInlineQueue(lgr, []pkgqueue.Job{job})
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	q := pkgqueue.NewRedisQueue(lgr, &pkgqueue.QueueConfig{
		Workers:    cfg.Discovery.QueueWorkers,
		RetryLimit: 1,
	}, client, pkgqueue.ModeProducerConsumer)
	q.RegisterJob(job)
	return q
}

// ProvideResultCache backs the read endpoints. Redis adds a shared
// layer when enabled, otherwise the in-process cache stands alone.
func ProvideResultCache(cfg *config.Config) cache.Service {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache()
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvidePairsHandler creates the HTTP read API.
func ProvidePairsHandler(
	lgr *logger.Logger,
	monitor *usecase.LiveMonitor,
	index simindex.Index,
	reader repository.ResultReader,
	jobs pkgqueue.QueueService,
	resultCache cache.Service,
	cfg *config.Config,
) *api.PairsHandler {
	h := api.NewPairsHandler(lgr, monitor, index, reader, jobs)
	if resultCache != nil {
		h.SetCache(resultCache, cfg.Discovery.ResultCacheTTL)
	}
	return h
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher interface.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	producer *pkgkafka.Producer,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	qh *usecase.KafkaQuotesHandler,
	jobs pkgqueue.QueueService,
	handler *api.PairsHandler,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if cfg.Kafka.ErrorLogsTopic != "" && producer != nil {
		lgr.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.ErrorLogsTopic,
			Publisher:      kafkaLogPublisher{producer: producer},
		})
	}
	return server.New(cfg, lgr, collector, consumer, qh, jobs, handler, chClient)
}

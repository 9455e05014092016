package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PairScout/internal/handler/api"
	"PairScout/internal/usecase"
	pkgch "PairScout/pkg/clickhouse"
	"PairScout/pkg/config"
	xhttp "PairScout/pkg/http"
	pkgkafka "PairScout/pkg/kafka"
	applogger "PairScout/pkg/logger"
	pkgqueue "PairScout/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collector  *usecase.QuoteCollector
	consumer   *pkgkafka.Consumer
	qh         pkgkafka.MessageHandler
	jobs       pkgqueue.QueueService
	handler    *api.PairsHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	qh pkgkafka.MessageHandler,
	jobs pkgqueue.QueueService,
	handler *api.PairsHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		collector: collector,
		consumer:  consumer,
		qh:        qh,
		jobs:      jobs,
		handler:   handler,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := a.log

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Live feed, only when instruments are configured
	if a.collector != nil && len(a.cfg.Feed.Instruments) > 0 {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("instruments", a.cfg.Feed.Instruments))
	}

	// Kafka quotes consumer, only when a topic is configured
	if a.consumer != nil && a.qh != nil && a.qh.Topic() != "" {
		a.consumer.RegisterHandler(a.qh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.qh.Topic()))
	}

	// Job queue worker for discovery runs
	if q, ok := a.jobs.(*pkgqueue.RedisQueue); ok {
		if err := q.Start(); err != nil {
			l.Error("job queue start error", applogger.Error(err))
		} else {
			q.StartRetryProcessor()
			l.Info("job queue started")
		}
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

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.log

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if q, ok := a.jobs.(*pkgqueue.RedisQueue); ok {
		if err := q.Stop(shutdownCtx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
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

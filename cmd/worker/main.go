package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/config"
	"github.com/noah-isme/fafa-store/internal/db"
	"github.com/noah-isme/fafa-store/internal/events"
	"github.com/noah-isme/fafa-store/internal/notify"
	"github.com/noah-isme/fafa-store/internal/obs"
	"github.com/noah-isme/fafa-store/internal/resilience"
)

const (
	queueEvents      = "events"
	queueMaintenance = "maintenance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLoggerWithConfig(obs.LogConfig{
		Format: envOrDefault("OBS_LOG_FORMAT", "json"),
		Level:  envOrDefault("OBS_LOG_LEVEL", "info"),
		File:   cfg.LogFile,
	}).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "fafa"), nil)
	resilience.RegisterMetrics(prometheus.DefaultRegisterer)

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, ApplicationName: "fafa-worker", Logger: &logger})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisOpt, err := queueConnOpt(cfg)
	if err != nil {
		return err
	}
	eventStore := events.NewPgStore(pool)

	publishers := events.Publishers{}
	if cfg.EventsPublishEnabled {
		breaker := resilience.NewBreaker(resilience.BreakerConfig{
			Target:       "amqp",
			MinRequests:  uint32(max(cfg.BreakerMinRequests, 1)),
			FailureRatio: cfg.BreakerFailureRatio,
			OpenFor:      cfg.BreakerOpenFor,
			Logger:       &logger,
		})
		pub, conn, err := events.Dial(cfg.RabbitMQURL, cfg.EventsExchange, breaker)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer pub.Close()
		publishers = append(publishers, pub)
	}
	if len(cfg.WebhookURLs) > 0 {
		replay := redis.NewClient(&redis.Options{Addr: redisOpt.Addr, Username: redisOpt.Username, Password: redisOpt.Password, DB: redisOpt.DB, TLSConfig: redisOpt.TLSConfig})
		defer replay.Close()
		publishers = append(publishers, &notify.Webhook{
			Endpoints: webhookEndpoints(cfg),
			Client:    notify.NewHTTPClient(cfg.WebhookTimeout),
			Replay:    replay,
		})
	}
	if len(publishers) == 0 {
		logger.Warn().Msg("no event sinks configured; events are only marked published")
	}

	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	mux := asynq.NewServeMux()
	mux.Handle(events.TaskPublish, events.PublishHandler{Publisher: publishers, Store: eventStore, Logger: logger})
	mux.Handle(events.TaskRelay, events.Relay{
		Store:     eventStore,
		Scheduler: events.AsynqScheduler{Client: queueClient, Queue: queueEvents, MaxRetry: 12},
		Logger:    logger,
	})
	mux.Handle(cart.TaskPurge, cart.PurgeHandler{Svc: &cart.Service{Store: cart.NewPgStore(pool)}, Logger: logger})

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 8,
		Queues:      map[string]int{queueEvents: 6, queueMaintenance: 1},
		Logger:      asynqLogger{l: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Warn().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
		ShutdownTimeout: 20 * time.Second,
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC, Logger: asynqLogger{l: logger}})
	if _, err := scheduler.Register(cfg.CartPurgeSpec, asynq.NewTask(cart.TaskPurge, nil), asynq.Queue(queueMaintenance), asynq.MaxRetry(1)); err != nil {
		return fmt.Errorf("register cart purge: %w", err)
	}
	relaySpec := envOrDefault("EVENTS_RELAY_CRON", "@every 1m")
	if _, err := scheduler.Register(relaySpec, asynq.NewTask(events.TaskRelay, nil), asynq.Queue(queueMaintenance), asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("register relay: %w", err)
	}

	if err := srv.Start(mux); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return err
	}
	metricsSrv := serveMetrics(envOrDefault("WORKER_METRICS_ADDR", ":9091"), logger)

	logger.Info().Strs("queues", []string{queueEvents, queueMaintenance}).Msg("worker started")
	<-ctx.Done()

	scheduler.Shutdown()
	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return metricsSrv.Shutdown(shutdownCtx)
}

func serveMetrics(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}

func webhookEndpoints(cfg *config.Config) []notify.Endpoint {
	out := make([]notify.Endpoint, 0, len(cfg.WebhookURLs))
	for _, u := range cfg.WebhookURLs {
		out = append(out, notify.Endpoint{URL: u, Secret: cfg.WebhookSecret, Topics: cfg.WebhookTopics})
	}
	return out
}

func queueConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	if cfg.EventsQueueAddr != "" {
		return asynq.RedisClientOpt{Addr: cfg.EventsQueueAddr}, nil
	}
	o, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	return asynq.RedisClientOpt{Addr: o.Addr, Username: o.Username, Password: o.Password, DB: o.DB, TLSConfig: o.TLSConfig}, nil
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

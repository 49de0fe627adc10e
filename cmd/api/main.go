package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fafa-store/internal/analytics"
	"github.com/noah-isme/fafa-store/internal/audit"
	"github.com/noah-isme/fafa-store/internal/auth"
	"github.com/noah-isme/fafa-store/internal/cart"
	"github.com/noah-isme/fafa-store/internal/catalog"
	"github.com/noah-isme/fafa-store/internal/checkout"
	"github.com/noah-isme/fafa-store/internal/common"
	"github.com/noah-isme/fafa-store/internal/config"
	"github.com/noah-isme/fafa-store/internal/db"
	"github.com/noah-isme/fafa-store/internal/events"
	"github.com/noah-isme/fafa-store/internal/health"
	"github.com/noah-isme/fafa-store/internal/lock"
	"github.com/noah-isme/fafa-store/internal/obs"
	"github.com/noah-isme/fafa-store/internal/order"
	"github.com/noah-isme/fafa-store/internal/ratelimit"
	"github.com/noah-isme/fafa-store/internal/security"
	"github.com/noah-isme/fafa-store/internal/shipping"
	"github.com/noah-isme/fafa-store/internal/user"
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
	}).With().Str("service", "fafa-api").Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(namespace(), nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "fafa-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(bootCtx, db.PoolConfig{
		URL:             cfg.DatabaseURL,
		ApplicationName: "fafa-api",
		SlowQuery:       envDurationMillis("DB_SLOW_QUERY_MS", 200),
		Logger:          &logger,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := openRedis(bootCtx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	queue := asynq.NewClient(queueConnOpt(cfg, redisClient))
	defer queue.Close()

	bus := &events.Bus{
		Store:     events.NewPgStore(pool),
		Scheduler: events.AsynqScheduler{Client: queue, Queue: "events", MaxRetry: 12},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, logger, pool, redisClient, bus, metricsEnabled, tracingEnabled),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		health.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	drainDelay := envDurationMillis("SHUTDOWN_DRAIN_MS", 3000)
	if err := health.Drain(context.Background(), srv, drainDelay, 15*time.Second); err != nil {
		return err
	}
	return <-errCh
}

func newRouter(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, bus *events.Bus, metricsEnabled, tracingEnabled bool) http.Handler {
	locker := lock.Locker{
		R:            rdb,
		RetryBackoff: cfg.LockRetryBackoff,
		OnAcquire: func(wait time.Duration) {
			if obs.CartLockWait != nil {
				obs.CartLockWait.Observe(obs.DurationMillis(wait))
			}
		},
	}
	rates, err := newRates()
	if err != nil {
		logger.Fatal().Err(err).Msg("build shipping rate table")
	}

	catalogStore := catalog.NewPgStore(pool)
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        catalogStore,
		Cache:        catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogPageSize,
		MaxLimit:     cfg.CatalogMaxPageSize,
		LatestLimit:  cfg.CatalogLatestLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})

	cartStore := cart.NewPgStore(pool)
	cartSvc := &cart.Service{
		Store:   cartStore,
		Catalog: catalogSvc,
		Rates:   rates,
		Locker:  locker,
		LockTTL: cfg.CartLockTTL,
		TTL:     cfg.CartTTL,
		TaxBps:  cfg.PricingTaxRateBPS,
		Logger:  logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Currency: cfg.CurrencyCode}
	shipHandler := &shipping.Handler{Resolver: rates, Client: shipping.TableClient{Resolver: rates}}

	checkoutHandler := &checkout.Handler{Svc: &checkout.Service{
		DB:       pool,
		Carts:    cartStore,
		Pricer:   cartSvc,
		Locker:   locker,
		LockTTL:  cfg.CartLockTTL,
		Events:   bus,
		Currency: cfg.CurrencyCode,
		Logger:   logger,
	}}

	orderStore := order.NewPgStore(pool)
	orderSvc := &order.Service{Store: orderStore, Events: bus, Logger: logger}
	orderHandler := &order.Handler{Svc: orderSvc}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}

	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Q:            analytics.PgQuerier{DB: pool},
		Orders:       orderStore,
		R:            rdb,
		TTL:          cfg.AnalyticsCacheTTL,
		DefaultRange: 30,
	}}
	meHandler := &user.Handler{Service: &user.Service{DB: pool, Addresses: cartStore}}

	auditStore := audit.PgStore{DB: pool}
	recorder := audit.HTTPRecorder{
		Service: &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled},
		OnError: func(err error) { logger.Warn().Err(err).Msg("audit record failed") },
	}
	audited := func(action, resource, idParam string) func(http.Handler) http.Handler {
		return recorder.Middleware(audit.HTTPConfig{Action: action, ResourceType: resource, ResourceIDParam: idParam})
	}

	authMW := auth.Middleware{
		Verifier:     auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, 30*time.Second),
		AccessCookie: envOrDefault("AUTH_ACCESS_COOKIE", "access_token"),
	}
	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}
	limitErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(namespace(), buckets, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.CORS(allowedOrigins(cfg)))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production", HSTSMaxAge: 31536000}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: rdb},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	cartWrites := ratelimit.Handler{
		Limiter: ratelimit.SlidingWindow{Client: rdb, Prefix: "rl:cart:", Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		Key:     ratelimit.ByCartOwner,
		OnError: limitErr,
	}

	r.Route("/api/v1", func(v chi.Router) {
		if public, err := ratelimit.NewFixed(rdb, "rl:public", cfg.PublicRateLimit); err != nil {
			logger.Error().Err(err).Str("rate", cfg.PublicRateLimit).Msg("public rate limit disabled")
		} else {
			v.Use(ratelimit.Handler{Limiter: public, Key: ratelimit.ByClientIP, OnError: limitErr}.Middleware)
		}
		v.Use(authMW.Authenticate)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/categories/{slug}/products", catalogHandler.CategoryProducts)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/latest", catalogHandler.Latest)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Get("/shipping/regions", shipHandler.Regions)
		v.Get("/shipping/quote", shipHandler.Quote)

		v.Group(func(s chi.Router) {
			s.Use(common.SessionCartMiddleware)

			s.Route("/cart", func(c chi.Router) {
				c.Get("/", cartHandler.Get)
				c.Get("/count", cartHandler.Count)
				c.Group(func(w chi.Router) {
					w.Use(cartWrites.Middleware, idem.Middleware)
					w.Post("/items", cartHandler.AddItem)
					w.Delete("/items/{productId}", cartHandler.RemoveItem)
					w.Put("/shipping-address", cartHandler.SaveShippingAddress)
				})
			})
			s.With(cartWrites.Middleware, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

			s.Get("/orders/{id}", orderHandler.Get)
			s.With(authMW.RequireAuth).Get("/orders", orderHandler.Mine)
		})

		v.Route("/me", func(me chi.Router) {
			me.Use(authMW.RequireAuth)
			me.Get("/", meHandler.Me)
			me.Put("/address", meHandler.UpdateAddress)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAuth)
			admin.Use(auth.RequireRole(common.RoleAdmin))

			admin.Get("/overview", analyticsHandler.Overview)
			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
			admin.Get("/audit-logs", audit.Handler{Store: auditStore}.List)

			admin.Get("/products/{id}", catalogHandler.AdminGet)
			admin.With(audited("product.create", "product", "")).Post("/products", catalogHandler.AdminCreate)
			admin.With(audited("product.update", "product", "id")).Put("/products/{id}", catalogHandler.AdminUpdate)
			admin.With(audited("product.delete", "product", "id")).Delete("/products/{id}", catalogHandler.AdminDelete)

			admin.Get("/orders", orderAdmin.List)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.With(audited("order.deliver", "order", "id")).Patch("/orders/{id}/delivered", orderAdmin.MarkDelivered)
			admin.With(audited("order.deliver_batch", "order", "")).Post("/orders/delivered", orderAdmin.MarkDeliveredBatch)
			admin.With(audited("order.delete", "order", "id")).Delete("/orders/{id}", orderAdmin.Delete)
		})
	})
	return r
}

// newRates builds the resolver shared by cart pricing, checkout and quotes,
// reporting every lookup to shipping_resolutions_total.
func newRates() (*shipping.Resolver, error) {
	rates, err := shipping.NewResolver(shipping.DefaultTable)
	if err != nil {
		return nil, err
	}
	rates.Observe = func(method shipping.DeliveryMethod, result string) {
		obs.ObserveShippingResolution(string(method), result)
	}
	return rates, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func openRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// queueConnOpt points asynq at EVENTS_QUEUE_REDIS_ADDR, or at the main Redis.
func queueConnOpt(cfg *config.Config, rdb *redis.Client) asynq.RedisClientOpt {
	if cfg.EventsQueueAddr != "" {
		return asynq.RedisClientOpt{Addr: cfg.EventsQueueAddr}
	}
	o := rdb.Options()
	return asynq.RedisClientOpt{Addr: o.Addr, Username: o.Username, Password: o.Password, DB: o.DB, TLSConfig: o.TLSConfig}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func namespace() string {
	return envOrDefault("OBS_METRICS_NAMESPACE", "fafa")
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		return parsed
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

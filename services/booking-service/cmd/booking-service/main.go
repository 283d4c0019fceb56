package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lancerhub/marketplace/libs/config"
	"github.com/lancerhub/marketplace/libs/db"
	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/libs/kafkax"
	otelx "github.com/lancerhub/marketplace/libs/otel"
	"github.com/lancerhub/marketplace/libs/runtime"
	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/booking"
	"github.com/lancerhub/marketplace/services/booking-service/internal/cache"
	"github.com/lancerhub/marketplace/services/booking-service/internal/handlers"
	"github.com/lancerhub/marketplace/services/booking-service/internal/metrics"
	"github.com/lancerhub/marketplace/services/booking-service/internal/outbox"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage/memstore"
	"github.com/lancerhub/marketplace/services/booking-service/migrations"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// bookingStore is satisfied by both the Postgres store and memstore.
type bookingStore interface {
	booking.Store
	availability.Store
	handlers.WorkingHoursStore
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("BOOKING_TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}
	cacheTTL, err := config.Duration("WORKING_HOURS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		panic(err)
	}
	ratePerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}
	metrics.Register()

	var (
		store    bookingStore
		notifier booking.Notifier
		checks   []runtime.ReadyCheck
	)
	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
			logger.Error("db migration failed", "err", err)
			panic(err)
		}

		store = storage.NewStore(pool)
		outboxRepo := outbox.NewRepository()
		notifier = outbox.NewNotifier(pool, outboxRepo)
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)

		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
		if len(brokers) > 0 {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory storage and log-only notifications")
		store = memstore.New()
		notifier = booking.NotifierFunc(func(_ context.Context, e booking.Event) error {
			logger.Info("notification", "event_type", e.Type, "booking_id", e.Booking.ID, "recipients", len(e.Recipients()))
			return nil
		})
	}

	var (
		reads       availability.Store = store
		invalidator handlers.Invalidator
		counter     httpx.Counter = httpx.NewMemoryCounter(time.Minute)
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		whCache := cache.NewWorkingHours(rdb, store, cacheTTL, logger)
		reads, invalidator = whCache, whCache
		counter = httpx.NewRedisCounter(rdb, time.Minute)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	svc := booking.NewService(store, notifier, logger, booking.Config{Location: loc})

	mux := runtime.NewBaseMux(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.Routes{
		Availability: handlers.NewAvailabilityHandler(availability.NewResolver(reads, loc), logger),
		Bookings:     handlers.NewBookingHandler(svc, logger),
		WorkingHours: handlers.NewWorkingHoursHandler(store, invalidator, logger),
		PublicLimit: httpx.RateLimit(counter, httpx.RateLimitConfig{
			Limit:    ratePerMinute,
			Prefix:   "rl:availability",
			FailOpen: true,
			Logger:   logger,
		}),
		JWTSecret: jwtSecret,
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(splitList(config.String("CORS_ALLOWED_ORIGINS", "")))),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	if err := startGRPC(ctx, logger, ":"+grpcPort); err != nil {
		logger.Error("grpc server failed to start", "err", err)
		panic(err)
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

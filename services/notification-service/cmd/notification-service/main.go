package main

import (
	"context"
	"net/http"
	"time"

	"github.com/lancerhub/marketplace/libs/config"
	"github.com/lancerhub/marketplace/libs/db"
	"github.com/lancerhub/marketplace/libs/events"
	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/libs/kafkax"
	otelx "github.com/lancerhub/marketplace/libs/otel"
	"github.com/lancerhub/marketplace/libs/runtime"
	"github.com/lancerhub/marketplace/services/notification-service/internal/consumer"
	"github.com/lancerhub/marketplace/services/notification-service/internal/dispatch"
	"github.com/lancerhub/marketplace/services/notification-service/internal/email"
	"github.com/lancerhub/marketplace/services/notification-service/internal/inbox"
	"github.com/lancerhub/marketplace/services/notification-service/internal/storage"
	"github.com/lancerhub/marketplace/services/notification-service/migrations"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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
	dispatch.RegisterMetrics()

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.PoolOptions{MaxConns: 5})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
		logger.Error("db migration failed", "err", err)
		panic(err)
	}

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@lancerhub.local"),
	)
	dispatcher := dispatch.New(sender, storage.NewRepository(pool), logger)

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if len(brokers) > 0 {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  events.BookingTopics(),
		}, dispatcher.Handle)
		go eventConsumer.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; consumer disabled")
	}

	mux := runtime.NewBaseMux(checks...)
	mux.Handle("/metrics", promhttp.Handler())
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}

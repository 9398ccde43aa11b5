package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	civilhandler "etatcivil/internal/civil/handler"
	civilmetrics "etatcivil/internal/civil/metrics"
	civilservice "etatcivil/internal/civil/service"
	actstore "etatcivil/internal/civil/store/act"
	docstore "etatcivil/internal/docgen/store/document"
	docgen "etatcivil/internal/docgen/service"
	jwttoken "etatcivil/internal/jwt_token"
	"etatcivil/internal/notify"
	paymentgw "etatcivil/internal/payment/gateway"
	paymenthandler "etatcivil/internal/payment/handler"
	paymentmetrics "etatcivil/internal/payment/metrics"
	paymentservice "etatcivil/internal/payment/service"
	paymentstore "etatcivil/internal/payment/store/payment"
	"etatcivil/internal/platform/config"
	"etatcivil/internal/platform/httpserver"
	"etatcivil/internal/platform/logger"
	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/platform/postgres"
	"etatcivil/internal/platform/redis"
	requesthandler "etatcivil/internal/request/handler"
	requestmetrics "etatcivil/internal/request/metrics"
	requestservice "etatcivil/internal/request/service"
	requeststore "etatcivil/internal/request/store/request"
	sequencemetrics "etatcivil/internal/sequence/metrics"
	sequenceservice "etatcivil/internal/sequence/service"
	counterstore "etatcivil/internal/sequence/store/counter"
	tariffhandler "etatcivil/internal/tariff/handler"
	tariffservice "etatcivil/internal/tariff/service"
	tariffstore "etatcivil/internal/tariff/store/tariff"
	"etatcivil/internal/tracking"
	trackinghandler "etatcivil/internal/tracking/handler"
	httptransport "etatcivil/internal/transport/http"
	"etatcivil/pkg/platform/audit"
	"etatcivil/pkg/platform/audit/publisher"
	auditworker "etatcivil/pkg/platform/audit/worker"
)

// main wires dependencies and owns the process lifecycle. Domain logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.RedisURL, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: Kafka when brokers are configured, the structured
	// log otherwise.
	var auditPub publisher.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		auditPub, err = publisher.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("audit producer connection failed", "error", err)
			os.Exit(1)
		}
	} else {
		auditPub = publisher.NewLog(log)
	}
	defer auditPub.Close()

	auditInbox := make(chan audit.Event, 256)
	emitter := auditworker.NewEmitter(auditInbox, auditPub, log)

	httpMetrics := metrics.New()
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "etatcivil", "etatcivil-api")

	// Sequencing
	counters := counterstore.NewPostgres(db)
	allocator := sequenceservice.New(counters,
		sequenceservice.WithLogger(log),
		sequenceservice.WithMetrics(sequencemetrics.New()),
	)

	// Tariffs
	tariffs := tariffservice.New(tariffstore.NewPostgres(db))

	// Civil acts
	civilSvc := civilservice.New(actstore.NewPostgres(db), allocator,
		civilservice.WithLogger(log),
		civilservice.WithMetrics(civilmetrics.New()),
		civilservice.WithAuditEmitter(emitter),
	)

	// Document generation
	documents := docgen.New(docgen.TextGenerator{}, docstore.NewPostgres(db))

	// Payments and the request workflow reference each other: the request
	// service is built first, the payment service reads requests through
	// it, and the remaining edges bind afterwards.
	requestSvc := requestservice.New(
		requeststore.NewPostgres(db),
		civilSvc,
		allocator,
		tariffs,
		requestservice.WithLogger(log),
		requestservice.WithMetrics(requestmetrics.New()),
		requestservice.WithAuditEmitter(emitter),
		requestservice.WithDocumentProducer(documents),
		requestservice.WithNotifier(&notify.LogNotifier{Logger: log}),
	)

	paymentSvc := paymentservice.New(
		paymentstore.NewPostgres(db),
		paymentgw.NewHTTP(cfg.Gateway),
		tariffs,
		requestSvc,
		paymentservice.WithLogger(log),
		paymentservice.WithMetrics(paymentmetrics.New()),
		paymentservice.WithAuditEmitter(emitter),
	)
	requestSvc.BindPayments(paymentSvc)
	paymentSvc.BindWorkflow(requestSvc)

	trackingSvc := tracking.New(requestSvc,
		tracking.WithLogger(log),
		tracking.WithCache(tracking.NewRedisCache(redisClient), cfg.TrackingCacheTTL),
	)

	health := map[string]httptransport.HealthChecker{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      httpMetrics,
		JWTValidator: jwtService,
		Civil:        civilhandler.New(civilSvc, log),
		Requests:     requesthandler.New(requestSvc, log),
		Payments:     paymenthandler.New(paymentSvc, log),
		Tariffs:      tariffhandler.New(tariffs, log),
		Tracking:     trackinghandler.New(trackingSvc),
		Health:       health,
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditworker.New(auditPub, auditInbox, log).Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("starting etatcivil server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"academy/internal/credential/eligibility"
	credentialhandler "academy/internal/credential/handler"
	credentialmetrics "academy/internal/credential/metrics"
	"academy/internal/credential/render"
	"academy/internal/credential/sequence"
	credentialservice "academy/internal/credential/service"
	credentialstore "academy/internal/credential/store"
	"academy/internal/credential/token"
	"academy/internal/credential/verify"
	enrollmenthandler "academy/internal/enrollment/handler"
	enrollmentservice "academy/internal/enrollment/service"
	enrollmentstore "academy/internal/enrollment/store"
	jwttoken "academy/internal/jwt_token"
	"academy/internal/platform/config"
	"academy/internal/platform/database"
	"academy/internal/platform/health"
	"academy/internal/platform/kafka/producer"
	"academy/internal/platform/logger"
	"academy/internal/platform/redis"
	"academy/internal/platform/tracer"
	ratelimitmetrics "academy/internal/ratelimit/metrics"
	ratelimitmw "academy/internal/ratelimit/middleware"
	ratelimitmodels "academy/internal/ratelimit/models"
	ratelimit "academy/internal/ratelimit/service"
	"academy/internal/ratelimit/store/bucket"
	"academy/internal/seeder"
	httptransport "academy/internal/transport/http"
	"academy/migrations"
	"academy/pkg/platform/audit"
	"academy/pkg/platform/audit/outbox"
	outboxmetrics "academy/pkg/platform/audit/outbox/metrics"
	outboxmemory "academy/pkg/platform/audit/outbox/store/memory"
	outboxpostgres "academy/pkg/platform/audit/outbox/store/postgres"
	"academy/pkg/platform/audit/outbox/worker"
	"academy/pkg/platform/circuit"
	"academy/pkg/platform/middleware/metadata"
	request "academy/pkg/platform/middleware/request"
	txcontext "academy/pkg/platform/tx"
)

const (
	shutdownTimeout       = 10 * time.Second
	metricsRefreshPeriod  = 15 * time.Second
	readHeaderTimeout     = 5 * time.Second
	breakerCooldown       = 5 * time.Second
	breakerFailureTripsAt = 3
)

// enrollmentBackend is what both enrollment stores offer to the services.
type enrollmentBackend interface {
	credentialservice.EnrollmentStore
	enrollmentservice.Store
	render.DetailReader
}

type credentialBackend interface {
	credentialservice.Store
	verify.Store
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// backends groups the storage chosen by DATABASE_URL.
type backends struct {
	enrollments enrollmentBackend
	credentials credentialBackend
	sequences   sequence.Store
	outbox      outbox.Store
	tx          txRunner
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "initializing academy",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"postgres", cfg.DatabaseURL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Brokers != "",
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.New(cfg.Environment)

	pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	var b backends
	if pool != nil {
		defer pool.Close() //nolint:errcheck // process is exiting
		if err := pool.RegisterMetrics(reg); err != nil {
			return err
		}
		applied, err := database.Migrate(ctx, pool.DB(), migrations.FS)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.InfoContext(ctx, "migrations applied", "count", len(applied))
		healthHandler.RegisterCheck("postgres", pool.Health)
		b = postgresBackends(pool)
	} else {
		b, err = memoryBackends(ctx, cfg, log)
		if err != nil {
			return err
		}
	}

	redisClient, err := redis.New(ctx, cfg.Redis, reg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // process is exiting
		healthHandler.RegisterCheck("redis", redisClient.Health)
	}

	publisher, err := newPublisher(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer publisher.Close() //nolint:errcheck // flushes buffered records
	if cfg.Kafka.Brokers != "" {
		healthHandler.RegisterCheck("kafka", publisher.Health)
	}

	policy, err := eligibility.NewPolicy(cfg.Credential.PassingScore, cfg.Credential.ScoreScale)
	if err != nil {
		return err
	}
	otel := tracer.NewOTel()
	credMetrics := credentialmetrics.New(reg)
	recorder := audit.NewRecorder(b.outbox, log)

	ledger := credentialservice.New(b.credentials, b.enrollments,
		sequence.New(b.sequences, sequence.WithLogger(log)),
		token.New(cfg.Credential.VerifyBaseURL),
		credentialservice.WithTx(b.tx),
		credentialservice.WithPolicy(policy),
		credentialservice.WithRetry(cfg.Credential.IssueMaxAttempts, cfg.Credential.IssueRetryBackoff),
		credentialservice.WithAuditRecorder(recorder),
		credentialservice.WithMetrics(credMetrics),
		credentialservice.WithTracer(otel),
		credentialservice.WithLogger(log),
	)
	renderer := render.New(ledger, b.enrollments,
		render.WithIssuerName(cfg.Credential.IssuerName),
		render.WithMetrics(credMetrics),
		render.WithTracer(otel),
		render.WithLogger(log),
	)
	verifier := verify.New(b.credentials,
		verify.WithMetrics(credMetrics),
		verify.WithTracer(otel),
		verify.WithLogger(log),
	)
	grading := enrollmentservice.New(b.enrollments,
		enrollmentservice.WithTx(b.tx),
		enrollmentservice.WithPolicy(policy),
		enrollmentservice.WithAuditRecorder(recorder),
		enrollmentservice.WithLogger(log),
	)

	limiter, err := newVerifyLimiter(cfg.VerifyLimits, redisClient, reg, log)
	if err != nil {
		return err
	}

	trusted, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.TokenTTL)
	jwtService.SetEnv(cfg.Environment)

	router := httptransport.NewRouter(httptransport.Handlers{
		Credentials: credentialhandler.New(ledger, renderer, verifier, log),
		Enrollments: enrollmenthandler.New(grading, log),
		Health:      healthHandler,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, httptransport.Config{
		RequestTimeout: cfg.RequestTimeout,
		TrustedProxies: trusted,
		AdminToken:     cfg.Auth.AdminAPIToken,
		JWT:            jwttoken.NewJWTServiceAdapter(jwtService),
		VerifyLimit:    ratelimitmw.New(limiter, log),
		Latency:        request.NewMetrics(reg),
	}, log)

	outboxWorker := worker.New(b.outbox, publisher,
		worker.WithTopic(cfg.Kafka.AuditTopic),
		worker.WithBatchSize(cfg.Kafka.OutboxBatchSize),
		worker.WithPollInterval(cfg.Kafka.OutboxPollInterval),
		worker.WithRetention(7*24*time.Hour),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(log),
	)
	outboxWorker.Start()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(metricsRefreshPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if redisClient != nil {
					redisClient.RecordPoolStats()
				}
				if err := outboxWorker.UpdateMetrics(gctx); err != nil {
					log.WarnContext(gctx, "outbox depth refresh failed", "error", err)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
		}
		if err := outboxWorker.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("outbox worker stop: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func postgresBackends(pool *database.Pool) backends {
	db := pool.DB()
	return backends{
		enrollments: enrollmentstore.NewPostgres(db),
		credentials: credentialstore.NewPostgres(db),
		sequences:   sequence.NewPostgres(db),
		outbox:      outboxpostgres.New(db),
		tx:          database.NewTxRunner(db),
	}
}

// memoryBackends keeps everything in process. Dev gets a seeded demo offering.
func memoryBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (backends, error) {
	enrollments := enrollmentstore.NewInMemory()
	if cfg.IsDev() {
		if err := seeder.New(enrollments, log).SeedAll(ctx); err != nil {
			return backends{}, err
		}
	}
	return backends{
		enrollments: enrollments,
		credentials: credentialstore.NewInMemory(enrollments),
		sequences:   sequence.NewInMemory(),
		outbox:      outboxmemory.New(),
		tx:          txcontext.LocalRunner{},
	}, nil
}

type publisher interface {
	worker.Publisher
	Health(ctx context.Context) error
	Close() error
}

func newPublisher(cfg config.KafkaConfig, log *slog.Logger) (publisher, error) {
	if cfg.Brokers == "" {
		return producer.NewNoopProducer(log), nil
	}
	return producer.New(cfg, log)
}

// newVerifyLimiter shares buckets through Redis when configured and falls back
// to process-local buckets while Redis is failing.
func newVerifyLimiter(cfg config.VerifyLimitConfig, client *redis.Client, reg prometheus.Registerer, log *slog.Logger) (*ratelimit.Limiter, error) {
	opts := []ratelimit.Option{
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
		ratelimit.WithLogger(log),
		ratelimit.WithBreaker(circuit.New("ratelimit-redis",
			circuit.WithFailureThreshold(breakerFailureTripsAt),
			circuit.WithCooldown(breakerCooldown),
		)),
	}
	if client != nil {
		opts = append(opts, ratelimit.WithPrimary(bucket.NewRedis(client)))
	}
	policy := ratelimitmodels.Policy{RatePerMinute: cfg.RatePerMinute, Burst: cfg.Burst}
	return ratelimit.New(bucket.NewInMemory(), policy, opts...)
}

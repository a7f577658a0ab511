package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/auth"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/cart"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/checkout"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/config"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/event"
	handler "github.com/Aniket7411/Gems-frontend-sub001/internal/handler/http"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/orderapi"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/otp"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment/midtrans"
	mockgw "github.com/Aniket7411/Gems-frontend-sub001/internal/payment/mock"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository/memory"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository/postgres"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository/postgres/migrations"
	redisrepo "github.com/Aniket7411/Gems-frontend-sub001/internal/repository/redis"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/session"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/database"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/health"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httpclient"
	pkgkafka "github.com/Aniket7411/Gems-frontend-sub001/pkg/kafka"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/middleware"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	sessions       *session.Registry
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Collectors are registered on reg.
func NewApp(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	snapshots, err := a.snapshotStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	attempts, err := a.attemptLedger(ctx, healthHandler, reg)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// Kafka is optional; a nil producer publishes nothing.
	var events *event.Producer
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// HTTP clients with a circuit breaker per collaborator.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(cfg.HTTPClientTimeoutSec) * time.Second
	baseClient := httpclient.New(clientCfg)

	orderClient := httpclient.NewCircuitBreakerClient(baseClient, a.breakerConfig("order-api"), logger)
	otpClient := httpclient.NewCircuitBreakerClient(baseClient, a.breakerConfig("otp-provider"), logger)

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	logger.Info("payment gateway selected", slog.String("gateway", gateway.Name()))

	a.sessions = session.NewRegistry(session.Config{
		Cart:              cart.Config{Namespace: cfg.CartNamespace, Policy: cfg.ShippingPolicy()},
		Checkout:          checkout.Config{Currency: cfg.Currency},
		MaxPaymentPending: cfg.PaymentPendingTimeout(),
	}, session.Deps{
		Snapshots: snapshots,
		Attempts:  attempts,
		Orders:    orderapi.NewClient(cfg.OrderAPIURL, orderClient, logger),
		Gateway:   gateway,
		OTP:       otp.NewHTTPProvider(cfg.OTPAPIURL, otpClient, logger),
		Events:    events,
		Metrics:   checkout.NewMetrics(reg),
		Logger:    logger,
	})

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterDeps{
		Sessions:       a.sessions,
		Gateway:        gateway,
		Health:         healthHandler,
		Metrics:        middleware.NewHTTPMetrics(serviceName, reg),
		TokenValidator: auth.NewTokenValidator(cfg.AuthJWTSecret),
		CORS:           corsCfg,
		OTPRateLimit: middleware.RateLimitConfig{
			PerMinute: cfg.OTPRatePerMinute,
			Burst:     cfg.OTPRateBurst,
		},
		Logger:         logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) snapshotStore(ctx context.Context, h *health.Handler) (repository.SnapshotRepository, error) {
	if a.cfg.CartBackend == config.BackendMemory {
		a.logger.Warn("cart snapshots kept in memory; carts are lost on restart")
		return memory.NewSnapshotStore(), nil
	}

	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPass,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)
	h.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	return redisrepo.NewSnapshotStore(rdb, a.cfg.CartTTLDuration()), nil
}

func (a *App) attemptLedger(ctx context.Context, h *health.Handler, reg prometheus.Registerer) (repository.AttemptRepository, error) {
	if a.cfg.LedgerBackend == config.BackendMemory {
		a.logger.Warn("checkout attempt ledger kept in memory; duplicate-order protection does not survive restarts")
		return memory.NewAttemptStore(), nil
	}

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = a.cfg.PostgresHost
	pgCfg.Port = a.cfg.PostgresPort
	pgCfg.User = a.cfg.PostgresUser
	pgCfg.Password = a.cfg.PostgresPass
	pgCfg.DBName = a.cfg.PostgresDB
	pgCfg.SSLMode = a.cfg.PostgresSSL
	pgCfg.MaxConns = a.cfg.DBMaxConns
	pgCfg.MinConns = a.cfg.DBMinConns

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	reg.MustRegister(database.NewPoolStatsCollector(pool, serviceName))
	h.RegisterCritical("postgres", pool.Ping)

	tracer := database.NewQueryTracer(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	return postgres.NewAttemptRepository(pool, tracer), nil
}

func (a *App) breakerConfig(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  a.cfg.CBMaxRequests,
		Interval:     time.Duration(a.cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(a.cfg.CBTimeout) * time.Second,
		FailureRatio: a.cfg.CBFailureRatio,
		MinRequests:  a.cfg.CBMinRequests,
	}
}

func newGateway(cfg *config.Config, logger *slog.Logger) (payment.Gateway, error) {
	switch cfg.PaymentGateway {
	case config.GatewayMock:
		return mockgw.NewGateway(time.Duration(cfg.MockPaymentAutoSucceedMs)*time.Millisecond, logger), nil
	case config.GatewayMidtrans:
		client := midtrans.NewSnapClient(midtrans.Config{
			ServerKey:  cfg.MidtransServerKey,
			Production: cfg.MidtransProduction,
		})
		return midtrans.NewGateway(client, cfg.MidtransServerKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.PaymentGateway)
	}
}

// Handler returns the HTTP handler serving the storefront API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.sessions.RunSweeper(sweepCtx, time.Minute, a.cfg.SessionIdleTimeout())

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server first so
// in-flight checkouts drain, then the tracer, Kafka, PostgreSQL and Redis.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.closeResources()

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
}

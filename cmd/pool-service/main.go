package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/httpapi"
	"github.com/radieske/betpool/internal/ledger"
	"github.com/radieske/betpool/internal/lock"
	"github.com/radieske/betpool/internal/pool"
	"github.com/radieske/betpool/internal/publisher"
	"github.com/radieske/betpool/internal/shared/cache"
	"github.com/radieske/betpool/internal/shared/config"
	"github.com/radieske/betpool/internal/shared/db"
	"github.com/radieske/betpool/internal/shared/kafka"
	"github.com/radieske/betpool/internal/shared/logger"
	"github.com/radieske/betpool/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pool-service"
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
		zap.String("ledger", cfg.LedgerBackend),
		zap.String("locks", cfg.LockBackend),
	)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		pg       *sql.DB
		rdb      *redis.Client
		checks   []metrics.HealthFunc
		needsRDB = cfg.LedgerBackend == "redis" || cfg.LockBackend == "redis"
	)

	// conecta com db Postgres (somente com o ledger postgres)
	if cfg.LedgerBackend == "postgres" {
		pg, err = db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		checks = append(checks, pg.PingContext)
		log.Info("postgres connected")
	}

	// conecta com Redis (ledger e/ou locks)
	if needsRDB {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		log.Info("redis connected")
	}

	var store ledger.Store
	switch cfg.LedgerBackend {
	case "memory":
		store = ledger.NewMemory()
	case "redis":
		store = ledger.NewRedis(rdb, "pool:")
	case "postgres":
		pgStore := ledger.NewPostgres(pg)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatal("ledger migrate", zap.Error(err))
		}
		store = pgStore
	default:
		log.Fatal("unknown ledger backend", zap.String("backend", cfg.LedgerBackend))
	}

	var locks lock.Locker
	switch cfg.LockBackend {
	case "memory":
		locks = lock.NewMemory(cfg.LockWait)
	case "redis":
		locks = lock.NewRedis(rdb, cfg.LockWait)
	default:
		log.Fatal("unknown lock backend", zap.String("backend", cfg.LockBackend))
	}

	// publisher Kafka; sem brokers os eventos de domínio são descartados
	var publ pool.Publisher
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		if cfg.Env == "local" || cfg.Env == "dev" {
			tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := kafka.EnsureTopics(tctx, brokers, cfg.TopicOddsUpdates, cfg.TopicBetPlaced, cfg.TopicEventResolved); err != nil {
				log.Warn("failed to create kafka topics", zap.Error(err))
			}
			cancel()
		}
		writer := kafka.NewWriter(brokers)
		kp := publisher.NewKafkaPublisher(writer, publisher.Topics{
			OddsUpdates:   cfg.TopicOddsUpdates,
			BetPlaced:     cfg.TopicBetPlaced,
			EventResolved: cfg.TopicEventResolved,
		}, log)
		defer kp.Close()
		publ = kp
		log.Info("kafka publisher ready", zap.Strings("brokers", brokers))
	} else {
		log.Warn("KAFKA_BROKERS not set, domain events disabled")
	}

	// Métricas Prometheus do engine
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPool(reg)

	engine := pool.NewEngine(log, store, locks, publ)
	engine.InitialBalance = cfg.InitialBalance
	engine.OnBetPlaced = m.BetPlaced
	engine.OnResolved = m.Resolved
	engine.OnError = m.Error
	engine.OnPublishError = m.PublishError

	// metrics/health
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	// HTTP público
	api := httpapi.New(log, engine, cfg.Origins())
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("pool-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("pool-service stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/betpool/internal/shared/cache"
	"github.com/radieske/betpool/internal/shared/config"
	"github.com/radieske/betpool/internal/shared/kafka"
	"github.com/radieske/betpool/internal/shared/logger"
	"github.com/radieske/betpool/internal/shared/metrics"
	"github.com/radieske/betpool/internal/stream"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "odds-stream"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Fatal("kafka brokers not provided")
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// consumer group próprio: cada réplica do stream recebe sua partição
	reader := kafka.NewReader(brokers, cfg.TopicOddsUpdates, "odds-stream")
	defer reader.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewStream(reg)

	relay := &stream.Relay{
		Log:        log,
		Reader:     reader,
		Redis:      redisClient,
		Channel:    cfg.RedisPubSubChannel,
		TTL:        24 * time.Hour,
		OnConsumed: m.Consumed.Inc,
		OnRelayed:  m.Relayed.Inc,
		OnError:    func(stage string) { m.Errors.WithLabelValues(stage).Inc() },
	}

	origins := cfg.Origins()
	hub := stream.NewHub(log, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	})
	hub.Snapshot = stream.Snapshot(redisClient)
	hub.OnDelivered = func(n int) { m.Delivered.Add(float64(n)) }

	if err := stream.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log); err != nil {
		log.Fatal("redis subscribe", zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	log.Info("metrics/health listening", zap.String("addr", msrv.Addr))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("ws listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ws server failed", zap.Error(err))
			stop()
		}
	}()

	log.Info("odds-stream started", zap.String("topic", cfg.TopicOddsUpdates))
	if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("relay stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("odds-stream stopped")
}

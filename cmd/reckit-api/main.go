// reckit-api 提供推荐列表与用户历史的只读 HTTP 接口。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	"github.com/rushteam/reckit-rt/api"
	"github.com/rushteam/reckit-rt/config"
	"github.com/rushteam/reckit-rt/logger"
	"github.com/rushteam/reckit-rt/publish"
	"github.com/rushteam/reckit-rt/store"
	"github.com/rushteam/reckit-rt/transport/kafka"
)

func main() {
	configPath := flag.String("config", os.Getenv("RECKIT_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}
	log := logger.Init(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("reckit-api exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisStore, err := store.NewRedisStoreWithOptions(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisStore.Close()
	client := redisStore.GetClient()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := api.Options{
		Reader: publish.NewStatePublisher(redisStore, publish.Options{
			HistoryTTL:        cfg.Engine.HistoryTTL,
			RecommendationTTL: cfg.Engine.RecommendationTTL,
		}),
		Health:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		Gatherer: reg,
		Logger:   log,
	}

	// 开启 Kafka 时，POST /events 写入事件主题，由处理进程异步消费
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			EventTopic:  cfg.Kafka.EventTopic,
			ResultTopic: cfg.Kafka.ResultTopic,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = producer.Close(flushCtx)
		}()
		opts.Ingester = producer
	}

	sup := suture.New("reckit-api", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Str("component", "supervisor").Fields(e.Map()).Msg(e.String())
		},
		Timeout: 10 * time.Second,
	})
	sup.Add(api.NewServerService("api-http", api.NewHTTPServer(cfg.HTTP.Addr, api.NewRouter(opts)), 0))

	log.Info().Str("addr", cfg.HTTP.Addr).Msg("reckit-api started")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reckit-rt 消费用户事件流，实时更新共现模型并发布推荐列表。
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	"github.com/rushteam/reckit-rt/api"
	"github.com/rushteam/reckit-rt/config"
	"github.com/rushteam/reckit-rt/content"
	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/dedup"
	"github.com/rushteam/reckit-rt/engine"
	"github.com/rushteam/reckit-rt/feast"
	"github.com/rushteam/reckit-rt/filter"
	"github.com/rushteam/reckit-rt/logger"
	"github.com/rushteam/reckit-rt/metrics"
	"github.com/rushteam/reckit-rt/model"
	"github.com/rushteam/reckit-rt/publish"
	"github.com/rushteam/reckit-rt/store"
	"github.com/rushteam/reckit-rt/transport/amqp"
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
		log.Fatal().Err(err).Msg("reckit-rt exited")
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
	m := metrics.New(reg)

	// 共现模型
	var (
		cooc model.CoOccurrence
		snap model.Snapshotter
	)
	switch cfg.Model.Backend {
	case "redis":
		cooc = model.NewRedisModel(client, cfg.Model.Prefix)
	default:
		sharded := model.NewShardedModel(cfg.Model.Shards)
		cooc, snap = sharded, sharded
		metrics.RegisterModelSize(reg, sharded.Size)
	}

	var checkpointer *model.Checkpointer
	if snap != nil && cfg.Checkpoint.Enabled {
		badgerStore, err := store.OpenBadgerStore(store.BadgerOptions{Path: cfg.Badger.Path, InMemory: cfg.Badger.InMemory})
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}
		defer badgerStore.Close()
		checkpointer = model.NewCheckpointer(snap, badgerStore, model.CheckpointOptions{
			Key:      cfg.Checkpoint.Key,
			Interval: cfg.Checkpoint.Interval,
		}, log)
		if _, err := checkpointer.Restore(ctx); err != nil {
			return fmt.Errorf("restore checkpoint: %w", err)
		}
	}

	lookup, closeContent, err := buildContent(ctx, cfg, redisStore, log)
	if err != nil {
		return err
	}
	defer closeContent()

	dd, err := buildDeduper(cfg, client)
	if err != nil {
		return err
	}
	flt, err := buildFilter(cfg)
	if err != nil {
		return err
	}

	sinks := engine.MultiSink{engine.LogSink{Logger: log.With().Str("component", "result").Logger()}}
	if cfg.Kafka.Enabled && cfg.Kafka.EmitResults {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			ResultTopic: cfg.Kafka.ResultTopic,
			EventTopic:  cfg.Kafka.EventTopic,
		}, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = producer.Close(flushCtx)
		}()
		sinks = append(sinks, producer)
	}

	publisher := publish.NewStatePublisher(redisStore, publish.Options{
		HistoryTTL:        cfg.Engine.HistoryTTL,
		RecommendationTTL: cfg.Engine.RecommendationTTL,
	})
	eng, err := engine.New(cfg.Engine, engine.Deps{
		Model:     cooc,
		Publisher: publisher,
		Content:   lookup,
		Deduper:   dd,
		Filter:    flt,
		Sink:      sinks,
		Metrics:   m,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	dispatcher := engine.NewDispatcher(eng, engine.DispatcherOptionsFrom(cfg.Engine, m), log)

	sup := suture.New("reckit-rt", suture.Spec{
		EventHook:        supervisorHook(log),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	transports := 0
	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.EventTopic,
			Group:   cfg.Kafka.Group,
		}, dispatcher, m, log)
		if err != nil {
			return err
		}
		sup.Add(consumer)
		transports++
	}
	if cfg.AMQP.Enabled {
		sup.Add(amqp.NewConsumer(amqp.ConsumerConfig{
			URL:      cfg.AMQP.URL,
			Exchange: cfg.AMQP.Exchange,
			Queue:    cfg.AMQP.Queue,
			Prefetch: cfg.AMQP.Prefetch,
		}, dispatcher, m, log))
		transports++
	}
	if transports == 0 {
		log.Warn().Msg("no transport enabled, events are accepted only via POST /events")
	}
	if checkpointer != nil {
		sup.Add(checkpointer)
	}

	router := api.NewRouter(api.Options{
		Reader:   publisher,
		Ingester: api.IngestFunc(dispatcher.Do),
		Health:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		Gatherer: reg,
		Logger:   log,
	})
	sup.Add(api.NewServerService("processor-http", api.NewHTTPServer(cfg.HTTP.MetricsAddr, router), 0))

	log.Info().
		Str("model", cfg.Model.Backend).
		Str("content", cfg.Content.Backend).
		Str("dedup", cfg.Dedup.Backend).
		Int("workers", cfg.Engine.Workers).
		Msg("reckit-rt started")

	err = sup.Serve(ctx)

	// 传输层已停止：处理完队列中的事件后再写最终检查点
	dispatcher.Close()
	if checkpointer != nil {
		if serr := checkpointer.Save(context.Background()); serr != nil {
			log.Error().Err(serr).Msg("final checkpoint failed")
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildContent(ctx context.Context, cfg *config.Config, kv core.KeyValueStore, log zerolog.Logger) (content.Lookup, func(), error) {
	deps := config.ContentDeps{Store: kv}
	var closers []func()
	closeFn := func() {
		for _, c := range closers {
			c()
		}
	}

	switch cfg.Content.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, closeFn, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		deps.Postgres = pool
	case "feast":
		fc, err := feast.NewGrpcClient(cfg.Feast.Host, cfg.Feast.Port)
		if err != nil {
			return nil, closeFn, err
		}
		deps.Feast = fc
		if cfg.Content.Params == nil {
			cfg.Content.Params = map[string]any{}
		}
		if _, ok := cfg.Content.Params["project"]; !ok {
			cfg.Content.Params["project"] = cfg.Feast.Project
		}
	}

	l, err := config.BuildContent(cfg.Content, deps, log)
	if err != nil {
		return nil, closeFn, err
	}
	return l, closeFn, nil
}

func buildDeduper(cfg *config.Config, client redis.Cmdable) (dedup.Deduper, error) {
	switch cfg.Dedup.Backend {
	case "bloom":
		return dedup.NewBloomDeduper(cfg.Dedup.Capacity, cfg.Dedup.FalsePositiveRate, cfg.Dedup.Window), nil
	case "redis":
		return dedup.NewRedisDeduper(client, "", cfg.Dedup.Window), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.Dedup.Backend)
	}
}

func buildFilter(cfg *config.Config) (filter.Filter, error) {
	var chain filter.Chain
	if len(cfg.Filter.EventTypes) > 0 {
		allowed := make([]core.EventType, 0, len(cfg.Filter.EventTypes))
		for _, s := range cfg.Filter.EventTypes {
			t, ok := core.ParseEventType(s)
			if !ok {
				return nil, fmt.Errorf("filter: unknown event type %q", s)
			}
			allowed = append(allowed, t)
		}
		chain = append(chain, &filter.EventTypeFilter{Allowed: allowed})
	}
	if cfg.Filter.Rule != "" {
		rule, err := filter.NewRuleFilter(cfg.Filter.Rule)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		chain = append(chain, rule)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

// supervisorHook 把 suture 事件写入日志。
func supervisorHook(log zerolog.Logger) suture.EventHook {
	l := log.With().Str("component", "supervisor").Logger()
	return func(e suture.Event) {
		l.Warn().Fields(e.Map()).Msg(e.String())
	}
}

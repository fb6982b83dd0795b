package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/engine"
	"github.com/rushteam/reckit-rt/metrics"
)

// Submitter 接收解码后的事件，由 *engine.Dispatcher 实现。
type Submitter interface {
	Submit(ctx context.Context, ev *core.UserEvent, done engine.DoneFunc) error
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers  []string
	Topic    string // 默认 "events"
	Group    string // 默认 "reckit-rt"
	ClientID string

	// MaxPollRecords 单次拉取的最大记录数，默认 500
	MaxPollRecords int
}

// Consumer 以消费组方式读取事件主题。
//
// 每批记录解码后提交给分发器并等待全部完成，再提交位移：
//   - 处理成功、被跳过或无法解码的记录可以提交
//   - 某个分区出现失败时，只提交该分区失败位移之前的记录，随后 Serve 返回错误，
//     由监督树重启消费者，从已提交位移重新拉取（至少一次）
type Consumer struct {
	cfg     ConsumerConfig
	sub     Submitter
	logger  zerolog.Logger
	metrics *metrics.Metrics
	opts    []kgo.Opt
}

func NewConsumer(cfg ConsumerConfig, sub Submitter, m *metrics.Metrics, logger zerolog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "events"
	}
	if cfg.Group == "" {
		cfg.Group = "reckit-rt"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "reckit-rt-consumer"
	}
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = 500
	}
	c := &Consumer{
		cfg:     cfg,
		sub:     sub,
		metrics: m,
		logger:  logger.With().Str("component", "kafka_consumer").Str("topic", cfg.Topic).Logger(),
	}
	c.opts = []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	return c, nil
}

// Serve 实现 suture.Service。每次启动新建客户端，从消费组已提交的位移开始。
func (c *Consumer) Serve(ctx context.Context) error {
	client, err := kgo.NewClient(c.opts...)
	if err != nil {
		return fmt.Errorf("kafka: new client: %w", err)
	}
	defer client.Close()
	c.logger.Info().Str("group", c.cfg.Group).Msg("consumer started")

	for {
		fetches := client.PollRecords(ctx, c.cfg.MaxPollRecords)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Warn().Err(err).Str("fetch_topic", topic).Int32("partition", partition).Msg("fetch error")
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}
		commit, procErr := c.processRecords(ctx, records)
		if len(commit) > 0 {
			if err := client.CommitRecords(ctx, commit...); err != nil {
				return fmt.Errorf("kafka: commit: %w", err)
			}
		}
		if procErr != nil {
			return procErr
		}
	}
}

func (c *Consumer) String() string { return "kafka-consumer" }

type partitionKey struct {
	topic     string
	partition int32
}

// processRecords 处理一批记录，返回可以提交的记录。
func (c *Consumer) processRecords(ctx context.Context, records []*kgo.Record) ([]*kgo.Record, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failed   = make(map[partitionKey]int64)
		firstErr error
	)
	fail := func(r *kgo.Record, err error) {
		mu.Lock()
		defer mu.Unlock()
		k := partitionKey{r.Topic, r.Partition}
		if off, ok := failed[k]; !ok || r.Offset < off {
			failed[k] = r.Offset
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, r := range records {
		ev, err := core.DecodeEvent(r.Value)
		if err != nil {
			c.metrics.Event("", metrics.OutcomeMalformed)
			c.logger.Warn().Err(err).Int32("partition", r.Partition).Int64("offset", r.Offset).Msg("malformed record skipped")
			continue
		}
		if key := string(r.Key); key != "" && key != ev.UserID {
			c.logger.Debug().Str("key", key).Str("user_id", ev.UserID).Msg("record key differs from user_id")
		}

		wg.Add(1)
		if err := c.sub.Submit(ctx, ev, func(_ *core.ProcessingResult, err error) {
			defer wg.Done()
			if err != nil && !core.IsMalformed(err) {
				fail(r, err)
			}
		}); err != nil {
			wg.Done()
			fail(r, err)
		}
	}
	wg.Wait()

	if len(failed) == 0 {
		return records, nil
	}
	commit := make([]*kgo.Record, 0, len(records))
	for _, r := range records {
		if off, ok := failed[partitionKey{r.Topic, r.Partition}]; ok && r.Offset >= off {
			continue
		}
		commit = append(commit, r)
	}
	sort.SliceStable(commit, func(i, j int) bool { return commit[i].Offset < commit[j].Offset })
	return commit, fmt.Errorf("kafka: %d partition(s) with failed events: %w", len(failed), firstErr)
}

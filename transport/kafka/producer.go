package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/reckit-rt/core"
)

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers      []string
	ResultTopic  string // 处理结果主题，默认 "recommendations"
	EventTopic   string // 事件主题，默认 "events"
	ClientID     string
	RequiredAcks int16  // 0=不等待, 1=leader, -1=all
	Compression  string // gzip, snappy, lz4, zstd
}

// Producer 把处理结果与事件写入 Kafka，消息键为 user_id，保证同一用户落在同一分区。
type Producer struct {
	client      *kgo.Client
	resultTopic string
	eventTopic  string
	logger      zerolog.Logger
}

func NewProducer(cfg ProducerConfig, logger zerolog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: brokers are required")
	}
	if cfg.ResultTopic == "" {
		cfg.ResultTopic = "recommendations"
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "events"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "reckit-rt-producer"
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
	}
	switch cfg.RequiredAcks {
	case 0:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	case -1:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	}
	switch cfg.Compression {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &Producer{
		client:      client,
		resultTopic: cfg.ResultTopic,
		eventTopic:  cfg.EventTopic,
		logger:      logger.With().Str("component", "kafka_producer").Logger(),
	}, nil
}

// Emit 实现 engine.ResultSink，异步写入，失败只记录日志。
func (p *Producer) Emit(ctx context.Context, res *core.ProcessingResult) error {
	rec, err := resultRecord(p.resultTopic, res)
	if err != nil {
		return err
	}
	p.client.Produce(ctx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn().Err(err).Str("user_id", string(r.Key)).Msg("produce result failed")
		}
	})
	return nil
}

// ProduceEvent 同步写入一个事件。
func (p *Producer) ProduceEvent(ctx context.Context, ev *core.UserEvent) error {
	rec, err := eventRecord(p.eventTopic, ev)
	if err != nil {
		return err
	}
	return p.client.ProduceSync(ctx, rec).FirstErr()
}

// Close 刷出缓冲中的消息并关闭客户端。
func (p *Producer) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}

func resultRecord(topic string, res *core.ProcessingResult) (*kgo.Record, error) {
	if res == nil {
		return nil, errors.New("kafka: nil result")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(res.UserID),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(res.EventType)},
			{Key: "history_size", Value: []byte(strconv.Itoa(res.HistorySize))},
		},
	}, nil
}

func eventRecord(topic string, ev *core.UserEvent) (*kgo.Record, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{Topic: topic, Key: []byte(ev.UserID), Value: data}, nil
}

// Ingest 把事件写入事件主题后立即返回，结果为空（由处理进程异步消费）。
// Producer 因此可以直接作为 api.Ingester。
func (p *Producer) Ingest(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	if err := p.ProduceEvent(ctx, ev); err != nil {
		if core.IsMalformed(err) {
			return nil, err
		}
		return nil, core.WrapDomainError(core.ModuleTransport, core.ErrorCodeUnavailable, "kafka: produce event failed", err)
	}
	return nil, nil
}

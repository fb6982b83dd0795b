// Package amqp 从 RabbitMQ 队列消费用户事件。
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

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
	URL         string
	Exchange    string   // 默认 "reckit.events"，topic 类型
	Queue       string   // 默认 "reckit-rt.events"
	RoutingKeys []string // 默认 ["event.#"]
	Prefetch    int      // 默认 32
	ConsumerTag string
}

// Consumer 消费事件队列。
//
// 结果确认：处理成功或被跳过 Ack；暂时性失败 Nack 并重新入队；无法解码或被引擎拒绝的事件
// Nack 且不重新入队（交给死信队列，如果配置了）。
// 重新入队的消息会排到队尾，同一用户的事件顺序此时无法保证。
type Consumer struct {
	cfg     ConsumerConfig
	sub     Submitter
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, sub Submitter, m *metrics.Metrics, logger zerolog.Logger) *Consumer {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.Exchange == "" {
		cfg.Exchange = "reckit.events"
	}
	if cfg.Queue == "" {
		cfg.Queue = "reckit-rt.events"
	}
	if len(cfg.RoutingKeys) == 0 {
		cfg.RoutingKeys = []string{"event.#"}
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 32
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "reckit-rt"
	}
	return &Consumer{
		cfg:     cfg,
		sub:     sub,
		metrics: m,
		logger:  logger.With().Str("component", "amqp_consumer").Str("queue", cfg.Queue).Logger(),
	}
}

// Serve 实现 suture.Service。连接或通道断开时返回错误，由监督树重连。
func (c *Consumer) Serve(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp: channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: declare queue: %w", err)
	}
	for _, rk := range c.cfg.RoutingKeys {
		if err := ch.QueueBind(q.Name, rk, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("amqp: bind %s: %w", rk, err)
		}
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("amqp: qos: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: consume: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info().Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("amqp: channel closed")
			}
			return fmt.Errorf("amqp: channel closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp: delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) String() string { return "amqp-consumer" }

// handleDelivery 解码并提交事件，在处理完成的回调中确认消息。
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	log := c.logger.With().Str("routing_key", d.RoutingKey).Uint64("delivery_tag", d.DeliveryTag).Logger()

	ev, err := core.DecodeEvent(d.Body)
	if err != nil {
		c.metrics.Event("", metrics.OutcomeMalformed)
		log.Warn().Err(err).Msg("malformed message dropped")
		_ = d.Nack(false, false)
		return
	}

	err = c.sub.Submit(ctx, ev, func(_ *core.ProcessingResult, err error) {
		switch {
		case err == nil:
			_ = d.Ack(false)
		case core.IsMalformed(err):
			log.Warn().Err(err).Msg("event rejected")
			_ = d.Nack(false, false)
		default:
			c.metrics.TransportRetry("amqp")
			log.Error().Err(err).Msg("event failed (requeue)")
			_ = d.Nack(false, true)
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("submit failed (requeue)")
		_ = d.Nack(false, true)
	}
}

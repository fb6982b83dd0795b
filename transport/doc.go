// Package transport 汇集事件输入与结果输出的消息中间件适配。
//
//   - kafka: 消费 events 主题（按 user_id 分区），提交位移实现至少一次投递；结果写入 recommendations 主题
//   - amqp: RabbitMQ 队列消费，成功 Ack，暂时性失败 Nack 重新入队
package transport

// Package reckit 是一个实时相关物品推荐引擎（reckit-rt）。
//
// 每条用户交互事件依次经过：
//   - 写入用户的有界历史（最近在前）
//   - 更新物品共现计数
//   - 并发召回协同过滤与内容候选，按权重混合排序
//   - 发布用户与物品的推荐列表到共享存储
//
// 同一用户的事件串行处理，不同用户并行。事件从 Kafka 或 RabbitMQ 进入，
// 推荐列表由 api 包对外提供只读 HTTP 接口。
//
// 入口见 cmd/reckit-rt（处理进程）与 cmd/reckit-api（读接口）。
package reckit

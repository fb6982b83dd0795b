package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 领域层不依赖具体存储后端
//
// 使用场景：
//   - 用户行为历史、推荐结果发布
//   - 共现模型检查点
//   - 物品类目、属性等内容元数据
//
// 实现：
//   - store.MemoryStore
//   - store.RedisStore
//   - store.BadgerStore（嵌入式，用于检查点）
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，支持有序集合（类目索引）。
//
// 如果后端不支持某些操作，可返回 ErrStoreNotSupported。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合添加成员（类目索引等）
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRange 按分数降序获取有序集合成员，分数相同按成员升序
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// ListStore 是支持列表结构的存储，对应 Redis List 布局：
// user:{id}:history、user:{id}:recommendations、item:{id}:recommendations。
type ListStore interface {
	Store

	// LRange 读取列表区间，stop 为 -1 表示到末尾；key 不存在返回空列表
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ReplaceList 原子地清空并写入整个列表，并设置过期时间（秒）。
	// values 为空时等价于删除。读者不会观察到写了一半的列表。
	ReplaceList(ctx context.Context, key string, values []string, ttl int) error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsStoreNotSupported 检查错误是否为操作不支持
func IsStoreNotSupported(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotSupported
	}
	return false
}

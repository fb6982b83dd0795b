// Package store 提供 core.Store 系列接口的基础设施实现（内存、Redis、Badger）。
//
// 接口定义在 core 包：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	var lists core.ListStore = store.NewRedisStoreWithClient(client)
package store

import (
	"sort"

	"github.com/redis/go-redis/v9"
)

// sortZDesc 按分数降序、成员升序排列。
func sortZDesc(zs []redis.Z) {
	sort.SliceStable(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score > zs[j].Score
		}
		mi, _ := zs[i].Member.(string)
		mj, _ := zs[j].Member.(string)
		return mi < mj
	})
}

package content

import (
	"context"
	"fmt"

	"github.com/rushteam/reckit-rt/core"
)

// StoreCatalog 基于 KeyValueStore 的物品目录：
//
//	item:{id}:category        String
//	category:{cat}:items      SortedSet，分数为物品热度
//
// 同时实现 Resolver 与 Index。
type StoreCatalog struct {
	store core.KeyValueStore
}

func NewStoreCatalog(store core.KeyValueStore) *StoreCatalog {
	return &StoreCatalog{store: store}
}

func CategoryKey(itemID string) string   { return "item:" + itemID + ":category" }
func CategoryIndexKey(cat string) string { return "category:" + cat + ":items" }

// CatalogItem 是写入目录的一条物品记录。
type CatalogItem struct {
	ItemID     string
	Category   string
	Popularity float64
}

// Put 写入物品类目并加入类目索引。
func (c *StoreCatalog) Put(ctx context.Context, it CatalogItem) error {
	if it.ItemID == "" {
		return fmt.Errorf("catalog: item id is required")
	}
	if it.Category != "" {
		if err := c.store.Set(ctx, CategoryKey(it.ItemID), []byte(it.Category)); err != nil {
			return fmt.Errorf("catalog: set category: %w", err)
		}
		if err := c.store.ZAdd(ctx, CategoryIndexKey(it.Category), it.Popularity, it.ItemID); err != nil {
			return fmt.Errorf("catalog: index category: %w", err)
		}
	}
	return nil
}

func (c *StoreCatalog) Category(ctx context.Context, itemID string) (string, error) {
	v, err := c.store.Get(ctx, CategoryKey(itemID))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ItemsInCategory 按热度降序返回类目下的物品；多取一个以便排除锚点物品后仍有 n 个。
func (c *StoreCatalog) ItemsInCategory(ctx context.Context, category, exclude string, n int) ([]string, error) {
	members, err := c.store.ZRange(ctx, CategoryIndexKey(category), 0, int64(n))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for _, m := range members {
		if m == exclude {
			continue
		}
		out = append(out, m)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

var (
	_ Resolver = (*StoreCatalog)(nil)
	_ Index    = (*StoreCatalog)(nil)
)

// Package content 提供基于物品属性（类目）的内容相似召回。
package content

import (
	"context"

	"github.com/rushteam/reckit-rt/core"
)

// Lookup 返回与 itemID 内容相似的最多 n 个物品（不含 itemID 本身），顺序确定。
// 失败由调用方降级为空列表。
type Lookup interface {
	Candidates(ctx context.Context, itemID string, n int) ([]string, error)
}

// LookupFunc 将函数适配为 Lookup。
type LookupFunc func(ctx context.Context, itemID string, n int) ([]string, error)

func (f LookupFunc) Candidates(ctx context.Context, itemID string, n int) ([]string, error) {
	return f(ctx, itemID, n)
}

// Resolver 解析物品类目。物品没有类目时返回 NOT_FOUND。
type Resolver interface {
	Category(ctx context.Context, itemID string) (string, error)
}

// Index 列出类目下的物品，排除 exclude。
type Index interface {
	ItemsInCategory(ctx context.Context, category, exclude string, n int) ([]string, error)
}

// CategoryLookup 组合 Resolver 与 Index：同类目下的其他物品即为内容候选。
// Resolver 与 Index 可以来自不同后端（例如 Feast 解析类目、Redis 存储类目索引）。
type CategoryLookup struct {
	Resolver Resolver
	Index    Index
}

func NewCategoryLookup(r Resolver, idx Index) *CategoryLookup {
	return &CategoryLookup{Resolver: r, Index: idx}
}

func (l *CategoryLookup) Candidates(ctx context.Context, itemID string, n int) ([]string, error) {
	if n <= 0 || itemID == "" {
		return nil, nil
	}
	category, err := l.Resolver.Category(ctx, itemID)
	if core.IsNotFound(err) || (err == nil && category == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := l.Index.ItemsInCategory(ctx, category, itemID, n)
	if err != nil {
		return nil, err
	}
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

var _ Lookup = (*CategoryLookup)(nil)

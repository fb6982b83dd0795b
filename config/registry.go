package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/content"
	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/feast"
	"github.com/rushteam/reckit-rt/pkg/conv"
)

// ContentDeps 是构建内容召回时可用的连接，按后端需要取用。
type ContentDeps struct {
	Store    core.KeyValueStore
	Postgres content.Querier
	Feast    feast.OnlineFeatureClient
}

// ContentBuilder 根据 params 构建内容召回。返回 nil 表示不启用内容召回。
// 各后端在 init 中调用 RegisterContent(name, builder) 即可被配置驱动。
type ContentBuilder func(params map[string]any, deps ContentDeps) (content.Lookup, error)

var (
	contentBuilders   = make(map[string]ContentBuilder)
	contentBuildersMu sync.RWMutex
)

func init() {
	RegisterContent("none", buildNoContent)
	RegisterContent("store", buildStoreContent)
	RegisterContent("postgres", buildPostgresContent)
	RegisterContent("feast", buildFeastContent)
}

// RegisterContent 注册一种内容召回后端。
func RegisterContent(name string, builder ContentBuilder) {
	if name == "" || builder == nil {
		return
	}
	contentBuildersMu.Lock()
	defer contentBuildersMu.Unlock()
	contentBuilders[name] = builder
}

// SupportedContentBackends 返回已注册的后端（排序），用于错误提示与校验。
func SupportedContentBackends() []string {
	contentBuildersMu.RLock()
	defer contentBuildersMu.RUnlock()
	names := make([]string, 0, len(contentBuilders))
	for n := range contentBuilders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidateContentBackend 校验后端已注册；空值等同 none。
func ValidateContentBackend(name string) error {
	if name == "" {
		return nil
	}
	contentBuildersMu.RLock()
	_, ok := contentBuilders[name]
	contentBuildersMu.RUnlock()
	if !ok {
		return fmt.Errorf("unsupported content backend %q (supported: %v)", name, SupportedContentBackends())
	}
	return nil
}

// BuildContent 构建配置指定的内容召回，并套上熔断器。
func BuildContent(cfg ContentConfig, deps ContentDeps, logger zerolog.Logger) (content.Lookup, error) {
	name := cfg.Backend
	if name == "" {
		name = "none"
	}
	if err := ValidateContentBackend(name); err != nil {
		return nil, err
	}
	contentBuildersMu.RLock()
	builder := contentBuilders[name]
	contentBuildersMu.RUnlock()

	lookup, err := builder(cfg.Params, deps)
	if err != nil {
		return nil, fmt.Errorf("build content backend %s: %w", name, err)
	}
	if lookup == nil {
		return nil, nil
	}
	return content.NewBreaker(lookup, content.BreakerConfig{
		Name:             "content-" + name,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Timeout:          cfg.Breaker.Timeout,
	}, logger), nil
}

func buildNoContent(map[string]any, ContentDeps) (content.Lookup, error) { return nil, nil }

// store: 类目与类目索引都在 KV 存储中
func buildStoreContent(_ map[string]any, deps ContentDeps) (content.Lookup, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	cat := content.NewStoreCatalog(deps.Store)
	return content.NewCategoryLookup(cat, cat), nil
}

// postgres: params 支持 table / id_column / category_column / order_column
func buildPostgresContent(params map[string]any, deps ContentDeps) (content.Lookup, error) {
	if deps.Postgres == nil {
		return nil, fmt.Errorf("postgres pool is required")
	}
	pg := content.NewPostgresCatalog(deps.Postgres, content.PostgresOptions{
		Table:          conv.ConfigGet(params, "table", ""),
		IDColumn:       conv.ConfigGet(params, "id_column", ""),
		CategoryColumn: conv.ConfigGet(params, "category_column", ""),
		OrderColumn:    conv.ConfigGet(params, "order_column", ""),
	})
	return content.NewCategoryLookup(pg, pg), nil
}

// feast: 类目来自 Feast 在线特征，类目索引在 KV 存储中。
// params 支持 project / feature / entity
func buildFeastContent(params map[string]any, deps ContentDeps) (content.Lookup, error) {
	if deps.Feast == nil {
		return nil, fmt.Errorf("feast client is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required for the category index")
	}
	resolver := feast.NewCategoryResolver(deps.Feast, feast.CategoryOptions{
		Project: conv.ConfigGet(params, "project", ""),
		Feature: conv.ConfigGet(params, "feature", "item_properties:category"),
		Entity:  conv.ConfigGet(params, "entity", "item_id"),
	})
	return content.NewCategoryLookup(resolver, content.NewStoreCatalog(deps.Store)), nil
}

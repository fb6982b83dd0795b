// Package publish 把引擎状态（用户历史、推荐列表）写入共享存储，并提供读取接口。
package publish

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rushteam/reckit-rt/core"
)

const (
	DefaultHistoryTTL        = 86400 // 24h
	DefaultRecommendationTTL = 3600  // 1h
)

func UserHistoryKey(userID string) string         { return "user:" + userID + ":history" }
func UserRecommendationsKey(userID string) string { return "user:" + userID + ":recommendations" }
func ItemRecommendationsKey(itemID string) string { return "item:" + itemID + ":recommendations" }

func listKey(t core.SubjectType, id string) string {
	if t == core.SubjectItem {
		return ItemRecommendationsKey(id)
	}
	return UserRecommendationsKey(id)
}

func generatedAtKey(listKey string) string { return listKey + ":generated_at" }

// Options 配置过期时间（秒）。
type Options struct {
	HistoryTTL        int
	RecommendationTTL int
}

// StatePublisher 负责推荐列表与用户历史的持久化。
//
// 存储支持 core.ListStore 时使用 List 布局（与数据加载器、在线服务共享）；
// 否则以 JSON 数组整体写入。两种方式下，写入都是整体替换，读者不会看到写了一半的列表。
// 键不存在（从未计算或已过期）时读取返回空列表而不是错误。
type StatePublisher struct {
	store core.Store
	lists core.ListStore
	opts  Options
	now   func() time.Time
}

func NewStatePublisher(store core.Store, opts Options) *StatePublisher {
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = DefaultHistoryTTL
	}
	if opts.RecommendationTTL <= 0 {
		opts.RecommendationTTL = DefaultRecommendationTTL
	}
	p := &StatePublisher{store: store, opts: opts, now: time.Now}
	if ls, ok := store.(core.ListStore); ok {
		p.lists = ls
	}
	return p
}

// Publish 清空并写入推荐列表，过期时间为 RecommendationTTL。
func (p *StatePublisher) Publish(ctx context.Context, list *core.RecommendationList) error {
	if list == nil || list.SubjectID == "" {
		return nil
	}
	generatedAt := list.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = p.now()
	}
	key := listKey(list.SubjectType, list.SubjectID)
	if err := p.writeList(ctx, key, list.Items, p.opts.RecommendationTTL); err != nil {
		return core.NewTransientStoreError("publish "+string(list.SubjectType)+" recommendations", err)
	}
	if len(list.Items) > 0 {
		ts := []byte(strconv.FormatInt(generatedAt.UnixMilli(), 10))
		if err := p.store.Set(ctx, generatedAtKey(key), ts, p.opts.RecommendationTTL); err != nil {
			return core.NewTransientStoreError("publish generated_at", err)
		}
	}
	return nil
}

// PersistHistory 覆盖写入用户历史（最近在前），过期时间为 HistoryTTL。
func (p *StatePublisher) PersistHistory(ctx context.Context, userID string, items []string) error {
	if err := p.writeList(ctx, UserHistoryKey(userID), items, p.opts.HistoryTTL); err != nil {
		return core.NewTransientStoreError("persist history", err)
	}
	return nil
}

// History 读取用户历史的前 limit 个物品（limit <= 0 读取全部）。
func (p *StatePublisher) History(ctx context.Context, userID string, limit int) ([]string, error) {
	items, err := p.readList(ctx, UserHistoryKey(userID), limit)
	if err != nil {
		return nil, core.NewTransientStoreError("read history", err)
	}
	return items, nil
}

// UserRecommendations 读取用户推荐列表，不存在时返回空列表。
func (p *StatePublisher) UserRecommendations(ctx context.Context, userID string, limit int) (*core.RecommendationList, error) {
	return p.recommendations(ctx, core.SubjectUser, userID, limit)
}

// ItemRecommendations 读取物品推荐列表，不存在时返回空列表。
func (p *StatePublisher) ItemRecommendations(ctx context.Context, itemID string, limit int) (*core.RecommendationList, error) {
	return p.recommendations(ctx, core.SubjectItem, itemID, limit)
}

func (p *StatePublisher) recommendations(ctx context.Context, t core.SubjectType, id string, limit int) (*core.RecommendationList, error) {
	key := listKey(t, id)
	items, err := p.readList(ctx, key, limit)
	if err != nil {
		return nil, core.NewTransientStoreError("read recommendations", err)
	}
	list := &core.RecommendationList{SubjectID: id, SubjectType: t, Items: items}
	if len(items) == 0 {
		return list, nil
	}
	raw, err := p.store.Get(ctx, generatedAtKey(key))
	if err == nil {
		if ms, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
			list.GeneratedAt = time.UnixMilli(ms).UTC()
		}
	}
	return list, nil
}

func (p *StatePublisher) writeList(ctx context.Context, key string, items []string, ttl int) error {
	if p.lists != nil {
		return p.lists.ReplaceList(ctx, key, items, ttl)
	}
	if len(items) == 0 {
		return p.store.Delete(ctx, key)
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, key, data, ttl)
}

func (p *StatePublisher) readList(ctx context.Context, key string, limit int) ([]string, error) {
	if p.lists != nil {
		stop := int64(-1)
		if limit > 0 {
			stop = int64(limit - 1)
		}
		return p.lists.LRange(ctx, key, 0, stop)
	}
	data, err := p.store.Get(ctx, key)
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

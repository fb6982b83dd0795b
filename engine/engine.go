// Package engine 实现逐事件的推荐流程：读取历史、更新共现模型、两路召回、混合打分、
// 写回历史与推荐列表、输出处理结果。
//
// 同一用户的事件必须串行调用 Process（由 Dispatcher 保证）；不同用户可以并发。
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/content"
	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/dedup"
	"github.com/rushteam/reckit-rt/filter"
	"github.com/rushteam/reckit-rt/history"
	"github.com/rushteam/reckit-rt/metrics"
	"github.com/rushteam/reckit-rt/model"
	"github.com/rushteam/reckit-rt/pkg/utils"
	"github.com/rushteam/reckit-rt/recall"
	"github.com/rushteam/reckit-rt/rerank"
)

// Publisher 是引擎对状态存储的依赖，由 publish.StatePublisher 实现。
type Publisher interface {
	History(ctx context.Context, userID string, limit int) ([]string, error)
	PersistHistory(ctx context.Context, userID string, items []string) error
	Publish(ctx context.Context, list *core.RecommendationList) error
}

// Deps 是引擎的外部依赖。Model 与 Publisher 必填，其余可为空。
type Deps struct {
	Model     model.CoOccurrence
	Publisher Publisher
	Content   content.Lookup
	Deduper   dedup.Deduper
	Filter    filter.Filter
	Sink      ResultSink
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Engine 是推荐引擎实例。所有状态都在注入的依赖中，引擎本身无全局变量。
type Engine struct {
	cfg     Config
	model   model.CoOccurrence
	pub     Publisher
	dedup   dedup.Deduper
	filter  filter.Filter
	sink    ResultSink
	metrics *metrics.Metrics
	logger  zerolog.Logger
	fanout  *recall.Fanout
	scorer  rerank.HybridScorer
	now     func() time.Time
}

// New 创建引擎。
func New(cfg Config, deps Deps) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Model == nil {
		return nil, errors.New("engine: model is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("engine: publisher is required")
	}

	e := &Engine{
		cfg:     cfg,
		model:   deps.Model,
		pub:     deps.Publisher,
		dedup:   deps.Deduper,
		filter:  deps.Filter,
		sink:    deps.Sink,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "engine").Logger(),
		scorer: rerank.HybridScorer{
			CollabWeight:  cfg.CollabWeight,
			ContentWeight: cfg.ContentWeight,
			TopN:          cfg.TopN,
		},
		now: time.Now,
	}
	if e.dedup == nil {
		e.dedup = dedup.Nop{}
	}
	if e.sink == nil {
		e.sink = discardSink{}
	}

	sources := []recall.Source{&recall.CoOccurrenceRecall{Model: deps.Model, TopK: cfg.TopN}}
	if deps.Content != nil {
		sources = append(sources, &recall.ContentRecall{Lookup: deps.Content, TopK: cfg.TopN})
	}
	e.fanout = &recall.Fanout{
		Sources: sources,
		Timeouts: map[string]time.Duration{
			recall.SourceCollab:  cfg.StoreTimeout,
			recall.SourceContent: cfg.ContentTimeout,
		},
	}
	return e, nil
}

// Config 返回补齐默认值后的参数。
func (e *Engine) Config() Config { return e.cfg }

// Process 处理一个事件。
//
// 返回 (nil, nil) 表示事件被过滤或判定为重放，没有产生状态变更。
// MALFORMED_EVENT 错误在任何状态变更之前返回；UNAVAILABLE 错误表示事件中止，应由传输层重投。
func (e *Engine) Process(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	start := e.now()
	if err := ev.Validate(); err != nil {
		e.metrics.Event(eventType(ev), metrics.OutcomeMalformed)
		e.logger.Warn().Err(err).Msg("malformed event rejected")
		return nil, err
	}
	log := e.logger.With().Str("user_id", ev.UserID).Str("item_id", ev.ItemID).Str("event_id", ev.EventID).Logger()

	if e.filter != nil {
		skip, err := e.filter.ShouldFilter(ctx, ev)
		if err != nil {
			log.Warn().Err(err).Str("filter", e.filter.Name()).Msg("filter failed, event processed")
		} else if skip {
			e.metrics.Event(string(ev.EventType), metrics.OutcomeFiltered)
			log.Debug().Str("filter", e.filter.Name()).Msg("event filtered")
			return nil, nil
		}
	}

	seen, err := e.dedup.Seen(ctx, ev.EventID)
	if err != nil {
		log.Warn().Err(err).Msg("dedup check failed, event processed")
	} else if seen {
		e.metrics.Event(string(ev.EventType), metrics.OutcomeDuplicate)
		log.Debug().Msg("duplicate event skipped")
		return nil, nil
	}

	res, err := e.process(ctx, ev, log)
	if err != nil {
		e.metrics.Event(string(ev.EventType), metrics.OutcomeFailed)
		log.Error().Err(err).Msg("event aborted")
		return nil, err
	}

	if err := e.dedup.Mark(ctx, ev.EventID); err != nil {
		log.Warn().Err(err).Msg("dedup mark failed")
	}
	if err := e.sink.Emit(ctx, res); err != nil {
		log.Warn().Err(err).Msg("emit result failed")
	}
	e.metrics.Event(string(ev.EventType), metrics.OutcomeProcessed)
	e.metrics.ObserveProcessing(e.now().Sub(start))
	return res, nil
}

func (e *Engine) process(ctx context.Context, ev *core.UserEvent, log zerolog.Logger) (*core.ProcessingResult, error) {
	// 1. 历史
	archive, err := e.withStoreTimeout(ctx, func(ctx context.Context) ([]string, error) {
		return e.pub.History(ctx, ev.UserID, e.cfg.HistoryArchive)
	})
	if err != nil {
		return nil, asTransient("read history", err)
	}
	hist := history.New(e.cfg.HistoryArchive, archive...)
	window := hist.Window(e.cfg.HistoryWindow)

	// 2. 共现模型
	if err := e.updateModel(ctx, ev.ItemID, window); err != nil {
		var inc *model.InconsistencyError
		if !core.IsInconsistent(err) {
			return nil, err
		}
		n := 1
		if errors.As(err, &inc) {
			n = len(inc.Pairs)
		}
		e.metrics.Inconsistency(n)
		log.Warn().Err(err).Msg("cooccurrence pairs skipped")
	}

	// 3/4. 两路召回
	rctx := core.NewRecommendContext(ev, e.cfg.TopN)
	results := e.fanout.Run(ctx, rctx)

	collabRes, _ := recall.ByName(results, recall.SourceCollab)
	if collabRes.Err != nil {
		return nil, asTransient("cooccurrence topn", collabRes.Err)
	}
	collab := core.ItemIDs(collabRes.Items)
	recalled := collabRes.Items

	var contentIDs []string
	if contentRes, ok := recall.ByName(results, recall.SourceContent); ok {
		if contentRes.Err != nil {
			e.metrics.ContentDegraded()
			log.Warn().Err(contentRes.Err).Msg("content lookup degraded, using empty list")
		} else {
			contentIDs = core.ItemIDs(contentRes.Items)
			recalled = append(recalled[:len(recalled):len(recalled)], contentRes.Items...)
		}
	}

	// 5. 混合打分
	ranked := e.scorer.Score(collab, contentIDs)

	// 6. 历史写回
	updated := hist.Add(ev.ItemID)
	if err := e.withStoreTimeoutErr(ctx, func(ctx context.Context) error {
		return e.pub.PersistHistory(ctx, ev.UserID, updated)
	}); err != nil {
		return nil, asTransient("persist history", err)
	}

	// 7. 发布推荐列表
	now := e.now()
	lists := []*core.RecommendationList{
		{SubjectID: ev.UserID, SubjectType: core.SubjectUser, Items: ranked, GeneratedAt: now},
		{SubjectID: ev.ItemID, SubjectType: core.SubjectItem, Items: collab, GeneratedAt: now},
	}
	for _, l := range lists {
		if err := e.withStoreTimeoutErr(ctx, func(ctx context.Context) error {
			return e.pub.Publish(ctx, l)
		}); err != nil {
			return nil, asTransient("publish recommendations", err)
		}
		e.metrics.Published(string(l.SubjectType))
	}

	log.Debug().
		Int("window", len(window)).
		Int("collab", len(collab)).
		Int("content", len(contentIDs)).
		Int("ranked", len(ranked)).
		Msg("event processed")

	// 8. 结果
	return &core.ProcessingResult{
		UserID:          ev.UserID,
		ItemID:          ev.ItemID,
		EventType:       ev.EventType,
		EventID:         ev.EventID,
		HistorySize:     hist.Len(),
		Recommendations: ranked,
		Sources:         recallSources(ranked, recalled),
	}, nil
}

// recallSources 合并同一物品在各路召回中的 recall_source 标签。
func recallSources(ranked []string, recalled []*core.Item) map[string]string {
	if len(ranked) == 0 {
		return nil
	}
	merged := make(map[string]utils.Label, len(recalled))
	for _, it := range recalled {
		if it == nil {
			continue
		}
		if lbl, ok := it.Labels[recall.LabelSource]; ok {
			merged[it.ID] = utils.MergeLabel(merged[it.ID], lbl)
		}
	}
	out := make(map[string]string, len(ranked))
	for _, id := range ranked {
		if lbl, ok := merged[id]; ok {
			out[id] = lbl.Value
		}
	}
	return out
}

func (e *Engine) updateModel(ctx context.Context, item string, window []string) error {
	return e.withStoreTimeoutErr(ctx, func(ctx context.Context) error {
		if err := e.model.Update(ctx, item, window); err != nil {
			if core.IsInconsistent(err) {
				return err
			}
			return asTransient("cooccurrence update", err)
		}
		return nil
	})
}

func (e *Engine) withStoreTimeout(ctx context.Context, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

func (e *Engine) withStoreTimeoutErr(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

// asTransient 把未分类的存储错误（包括超时）归为 UNAVAILABLE。
func asTransient(op string, err error) error {
	if core.IsDomainError(err) {
		return err
	}
	return core.NewTransientStoreError(op, err)
}

func eventType(ev *core.UserEvent) string {
	if ev == nil {
		return ""
	}
	return string(ev.EventType)
}

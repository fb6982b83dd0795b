// Package api 提供推荐结果的只读 HTTP 接口，以及可选的事件写入接口。
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/reckit-rt/core"
)

// Reader 读取已发布的状态，由 publish.StatePublisher 实现。
type Reader interface {
	UserRecommendations(ctx context.Context, userID string, limit int) (*core.RecommendationList, error)
	ItemRecommendations(ctx context.Context, itemID string, limit int) (*core.RecommendationList, error)
	History(ctx context.Context, userID string, limit int) ([]string, error)
}

// Ingester 接收通过 HTTP 写入的事件。返回 nil 结果表示事件已被异步接收（例如写入 Kafka）。
type Ingester interface {
	Ingest(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error)
}

// IngestFunc 把函数适配为 Ingester。
type IngestFunc func(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error)

func (f IngestFunc) Ingest(ctx context.Context, ev *core.UserEvent) (*core.ProcessingResult, error) {
	return f(ctx, ev)
}

// Options 配置路由。除 Reader 外都可为空。
type Options struct {
	Reader   Reader
	Ingester Ingester
	Health   func(ctx context.Context) error
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	Timeout  time.Duration // 单个请求超时，默认 10 秒
}

// NewRouter 创建路由。
func NewRouter(opts Options) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	h := &handler{
		reader:   opts.Reader,
		ingester: opts.Ingester,
		health:   opts.Health,
		logger:   opts.Logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(opts.Timeout))

	r.Get("/health", h.Health)
	r.Get("/recommendations/{user_id}", h.UserRecommendations)
	r.Get("/recommendations/item/{item_id}", h.ItemRecommendations)
	r.Get("/history/{user_id}", h.History)
	if opts.Ingester != nil {
		r.Post("/events", h.PostEvent)
	}
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// requestLogger 用 zerolog 记录每个请求。
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

package feast

import (
	"context"
	"fmt"

	feastsdk "github.com/feast-dev/feast/sdk/go"

	"github.com/rushteam/reckit-rt/core"
)

// OnlineFeatureClient 是官方 SDK GrpcClient 的在线特征接口。
type OnlineFeatureClient interface {
	GetOnlineFeatures(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error)
}

// CategoryResolver 从 Feast 在线特征读取物品类目，实现 content.Resolver。
//
// 示例：
//
//	client, _ := feast.NewGrpcClient("localhost", 6565)
//	r := feast.NewCategoryResolver(client, feast.CategoryOptions{
//	    Project: "retail",
//	    Feature: "item_properties:category",
//	})
type CategoryResolver struct {
	opts  CategoryOptions
	fetch func(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) ([]feastsdk.Row, error)
}

// CategoryOptions 描述类目特征。
type CategoryOptions struct {
	Project string
	Feature string // 例如 item_properties:category
	Entity  string // 实体键，默认 item_id
}

// NewGrpcClient 创建官方 SDK 的 gRPC 客户端，port 为 0 时使用 6565。
func NewGrpcClient(host string, port int) (*feastsdk.GrpcClient, error) {
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("create feast grpc client %s:%d: %w", host, port, err)
	}
	return client, nil
}

func NewCategoryResolver(client OnlineFeatureClient, opts CategoryOptions) *CategoryResolver {
	return newCategoryResolver(opts, func(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) ([]feastsdk.Row, error) {
		resp, err := client.GetOnlineFeatures(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp.Rows(), nil
	})
}

func newCategoryResolver(opts CategoryOptions, fetch func(context.Context, *feastsdk.OnlineFeaturesRequest) ([]feastsdk.Row, error)) *CategoryResolver {
	if opts.Entity == "" {
		opts.Entity = "item_id"
	}
	return &CategoryResolver{opts: opts, fetch: fetch}
}

func (r *CategoryResolver) Category(ctx context.Context, itemID string) (string, error) {
	req := &feastsdk.OnlineFeaturesRequest{
		Features: []string{r.opts.Feature},
		Entities: []feastsdk.Row{{r.opts.Entity: feastsdk.StrVal(itemID)}},
		Project:  r.opts.Project,
	}
	rows, err := r.fetch(ctx, req)
	if err != nil {
		return "", fmt.Errorf("feast get online features: %w", err)
	}
	if len(rows) == 0 {
		return "", core.NewDomainError(core.ModuleContent, core.ErrorCodeNotFound, "feast: no row for item")
	}
	val, ok := rows[0][r.opts.Feature]
	if !ok || val == nil || val.GetStringVal() == "" {
		return "", core.NewDomainError(core.ModuleContent, core.ErrorCodeNotFound, "feast: category not set")
	}
	return val.GetStringVal(), nil
}

package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/rushteam/reckit-rt/core"
)

// Querier 是 pgxpool.Pool 与 pgxmock 共同满足的最小查询接口。
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresOptions 描述物品表结构。
type PostgresOptions struct {
	Table          string // 默认 items
	IDColumn       string // 默认 item_id
	CategoryColumn string // 默认 category
	OrderColumn    string // 类目内排序列（降序），为空时按 ID 升序
}

// PostgresCatalog 从关系库的物品表解析类目并列出同类目物品。
type PostgresCatalog struct {
	q    Querier
	opts PostgresOptions
	sb   squirrel.StatementBuilderType
}

func NewPostgresCatalog(q Querier, opts PostgresOptions) *PostgresCatalog {
	if opts.Table == "" {
		opts.Table = "items"
	}
	if opts.IDColumn == "" {
		opts.IDColumn = "item_id"
	}
	if opts.CategoryColumn == "" {
		opts.CategoryColumn = "category"
	}
	return &PostgresCatalog{
		q:    q,
		opts: opts,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (p *PostgresCatalog) Category(ctx context.Context, itemID string) (string, error) {
	query, args, err := p.sb.
		Select("COALESCE("+p.opts.CategoryColumn+", '')").
		From(p.opts.Table).
		Where(squirrel.Eq{p.opts.IDColumn: itemID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build category query: %w", err)
	}

	var category string
	if err := p.q.QueryRow(ctx, query, args...).Scan(&category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", core.NewDomainError(core.ModuleContent, core.ErrorCodeNotFound, "content: item not found")
		}
		return "", fmt.Errorf("query category: %w", err)
	}
	return category, nil
}

func (p *PostgresCatalog) ItemsInCategory(ctx context.Context, category, exclude string, n int) ([]string, error) {
	b := p.sb.
		Select(p.opts.IDColumn).
		From(p.opts.Table).
		Where(squirrel.Eq{p.opts.CategoryColumn: category}).
		Where(squirrel.NotEq{p.opts.IDColumn: exclude})
	if p.opts.OrderColumn != "" {
		b = b.OrderBy(p.opts.OrderColumn+" DESC", p.opts.IDColumn)
	} else {
		b = b.OrderBy(p.opts.IDColumn)
	}
	query, args, err := b.Limit(uint64(n)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category items query: %w", err)
	}

	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category items: %w", err)
	}
	defer rows.Close()

	items := make([]string, 0, n)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category items: %w", err)
	}
	return items, nil
}

var (
	_ Resolver = (*PostgresCatalog)(nil)
	_ Index    = (*PostgresCatalog)(nil)
)

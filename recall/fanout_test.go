package recall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/content"
	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/model"
)

type funcSource struct {
	name string
	fn   func(ctx context.Context) ([]*core.Item, error)
}

func (s funcSource) Name() string { return s.name }
func (s funcSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	return s.fn(ctx)
}

func TestFanout_PerSourceResults(t *testing.T) {
	f := &Fanout{
		Sources: []Source{
			funcSource{name: "ok", fn: func(ctx context.Context) ([]*core.Item, error) {
				return []*core.Item{core.NewItem("a", 1)}, nil
			}},
			funcSource{name: "broken", fn: func(ctx context.Context) ([]*core.Item, error) {
				return nil, errors.New("boom")
			}},
		},
	}

	results := f.Run(context.Background(), &core.RecommendContext{ItemID: "x", Limit: 10})
	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].Source)
	assert.Equal(t, []string{"a"}, core.ItemIDs(results[0].Items))
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "broken", results[1].Source)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Items)

	r, ok := ByName(results, "broken")
	assert.True(t, ok)
	assert.Error(t, r.Err)
}

func TestFanout_PerSourceTimeout(t *testing.T) {
	slow := funcSource{name: "slow", fn: func(ctx context.Context) ([]*core.Item, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return []*core.Item{core.NewItem("late", 1)}, nil
		}
	}}
	f := &Fanout{
		Sources:  []Source{slow},
		Timeout:  5 * time.Second,
		Timeouts: map[string]time.Duration{"slow": 10 * time.Millisecond},
	}

	start := time.Now()
	results := f.Run(context.Background(), &core.RecommendContext{})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestCoOccurrenceAndContentRecall(t *testing.T) {
	ctx := context.Background()
	m := model.NewShardedModel(2)
	require.NoError(t, m.Update(ctx, "101", []string{"100", "102"}))

	lookup := content.LookupFunc(func(ctx context.Context, itemID string, n int) ([]string, error) {
		return []string{"500", "501"}, nil
	})
	f := &Fanout{Sources: []Source{
		&CoOccurrenceRecall{Model: m},
		&ContentRecall{Lookup: lookup},
	}}

	results := f.Run(ctx, &core.RecommendContext{ItemID: "101", Limit: 10})
	collab, ok := ByName(results, SourceCollab)
	require.True(t, ok)
	assert.Equal(t, []string{"100", "102"}, core.ItemIDs(collab.Items))
	assert.Equal(t, "cooccurrence", collab.Items[0].Labels[LabelSource].Value)

	cont, ok := ByName(results, SourceContent)
	require.True(t, ok)
	assert.Equal(t, []string{"500", "501"}, core.ItemIDs(cont.Items))
}

package feast

import (
	"context"
	"errors"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/core"
)

func TestCategoryResolver(t *testing.T) {
	const feature = "item_properties:category"

	tests := []struct {
		name     string
		rows     []feastsdk.Row
		err      error
		want     string
		notFound bool
		wantErr  bool
	}{
		{
			name: "found",
			rows: []feastsdk.Row{{feature: feastsdk.StrVal("phones")}},
			want: "phones",
		},
		{
			name:     "no rows",
			notFound: true,
			wantErr:  true,
		},
		{
			name:     "feature missing",
			rows:     []feastsdk.Row{{"other": feastsdk.StrVal("x")}},
			notFound: true,
			wantErr:  true,
		},
		{
			name:    "server error",
			err:     errors.New("unavailable"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *feastsdk.OnlineFeaturesRequest
			r := newCategoryResolver(CategoryOptions{Project: "retail", Feature: feature},
				func(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) ([]feastsdk.Row, error) {
					captured = req
					return tt.rows, tt.err
				})

			got, err := r.Category(context.Background(), "101")
			require.NotNil(t, captured)
			assert.Equal(t, "retail", captured.Project)
			assert.Equal(t, []string{feature}, captured.Features)
			assert.Equal(t, "101", captured.Entities[0]["item_id"].GetStringVal())

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.notFound, core.IsNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/core"
)

func TestChain(t *testing.T) {
	rule, err := NewRuleFilter(`!event.item_id.startsWith("test_")`)
	require.NoError(t, err)
	chain := Chain{&EventTypeFilter{Allowed: []core.EventType{core.EventView, core.EventPurchase}}, rule}

	tests := []struct {
		name string
		ev   core.UserEvent
		skip bool
	}{
		{"view admitted", core.UserEvent{UserID: "u", ItemID: "1", EventType: core.EventView}, false},
		{"cart rejected by type", core.UserEvent{UserID: "u", ItemID: "1", EventType: core.EventAddToCart}, true},
		{"test item rejected by rule", core.UserEvent{UserID: "u", ItemID: "test_1", EventType: core.EventPurchase}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, err := chain.ShouldFilter(context.Background(), &tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.skip, skip)
		})
	}
}

func TestNewRuleFilter_Invalid(t *testing.T) {
	_, err := NewRuleFilter(`event.(`)
	assert.Error(t, err)
}

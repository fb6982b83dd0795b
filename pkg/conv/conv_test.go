package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigGet(t *testing.T) {
	m := map[string]any{"table": "products", "empty": "", "n": 3}

	assert.Equal(t, "products", ConfigGet(m, "table", "items"))
	assert.Equal(t, "items", ConfigGet(m, "missing", "items"))
	assert.Equal(t, "items", ConfigGet(m, "empty", "items"))
	assert.Equal(t, "x", ConfigGet(m, "n", "x"))
	assert.Equal(t, 3, ConfigGet(m, "n", 0))
	assert.Equal(t, "d", ConfigGet[string](nil, "table", "d"))
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(Config{Level: "warn", Format: "json"}, &buf), "engine")

	l.Info().Msg("dropped")
	l.Warn().Str("user_id", "u1").Msg("kept")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "kept", entry["message"])
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "loud"}, &buf)
	l.Debug().Msg("dropped")
	l.Info().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), "dropped")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/store"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Engine.HistoryWindow)
	assert.Equal(t, 86400, cfg.Engine.HistoryTTL)
	assert.Equal(t, 3600, cfg.Engine.RecommendationTTL)
	assert.Equal(t, 10, cfg.Engine.TopN)
	assert.Equal(t, "memory", cfg.Model.Backend)
	assert.Equal(t, "store", cfg.Content.Backend)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  top_n: 5
  collab_weight: 0.6
  content_weight: 0.4
  store_timeout: 2s
model:
  backend: redis
content:
  backend: postgres
  params:
    table: products
postgres:
  dsn: postgres://localhost/reckit
kafka:
  enabled: true
`), 0o600))
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.TopN)
	assert.Equal(t, 0.6, cfg.Engine.CollabWeight)
	assert.Equal(t, 2*time.Second, cfg.Engine.StoreTimeout)
	assert.Equal(t, 20, cfg.Engine.HistoryWindow)
	assert.Equal(t, "redis", cfg.Model.Backend)
	assert.Equal(t, "products", cfg.Content.Params["table"])
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Model.Backend = "cassandra"
	cfg.Content.Backend = "postgres"
	cfg.Dedup.Backend = "??"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model backend")
	assert.Contains(t, err.Error(), "requires postgres.dsn")
	assert.Contains(t, err.Error(), "unknown dedup backend")

	cfg = Default()
	cfg.Content.Backend = "milvus"
	assert.ErrorContains(t, cfg.Validate(), "supported: [feast none postgres store]")
}

func TestBuildContent(t *testing.T) {
	mem := store.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })

	lookup, err := BuildContent(ContentConfig{Backend: "none"}, ContentDeps{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, lookup)

	lookup, err = BuildContent(ContentConfig{Backend: "store"}, ContentDeps{Store: mem}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, lookup)

	_, err = BuildContent(ContentConfig{Backend: "postgres"}, ContentDeps{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = BuildContent(ContentConfig{Backend: "feast"}, ContentDeps{Store: mem}, zerolog.Nop())
	assert.Error(t, err)
}

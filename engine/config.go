package engine

import (
	"fmt"
	"time"

	"github.com/rushteam/reckit-rt/history"
	"github.com/rushteam/reckit-rt/publish"
	"github.com/rushteam/reckit-rt/rerank"
)

// Config 是引擎与分发器的参数。零值字段在 New 中取默认值。
type Config struct {
	HistoryWindow     int     `yaml:"history_window"`     // 参与打分的最近物品数，默认 20
	HistoryArchive    int     `yaml:"history_archive"`    // 持久化的历史长度上限，默认 50
	HistoryTTL        int     `yaml:"history_ttl"`        // 秒，默认 86400
	RecommendationTTL int     `yaml:"recommendation_ttl"` // 秒，默认 3600
	TopN              int     `yaml:"top_n"`
	CollabWeight      float64 `yaml:"collab_weight"`
	ContentWeight     float64 `yaml:"content_weight"`

	StoreTimeout   time.Duration `yaml:"store_timeout"`
	ContentTimeout time.Duration `yaml:"content_timeout"`

	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DefaultConfig 返回默认参数。
func DefaultConfig() Config {
	return Config{
		HistoryWindow:     history.DefaultWindow,
		HistoryArchive:    history.DefaultArchive,
		HistoryTTL:        publish.DefaultHistoryTTL,
		RecommendationTTL: publish.DefaultRecommendationTTL,
		TopN:              rerank.DefaultTopN,
		CollabWeight:      rerank.DefaultCollabWeight,
		ContentWeight:     rerank.DefaultContentWeight,
		StoreTimeout:      5 * time.Second,
		ContentTimeout:    5 * time.Second,
		Workers:           8,
		QueueSize:         256,
		MaxRetries:        3,
		RetryBackoff:      100 * time.Millisecond,
	}
}

// WithDefaults 用默认值补齐零值字段。两个权重同时为 0 时才取默认权重。
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.HistoryArchive <= 0 {
		c.HistoryArchive = d.HistoryArchive
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = d.HistoryTTL
	}
	if c.RecommendationTTL <= 0 {
		c.RecommendationTTL = d.RecommendationTTL
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.CollabWeight == 0 && c.ContentWeight == 0 {
		c.CollabWeight, c.ContentWeight = d.CollabWeight, d.ContentWeight
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	if c.ContentTimeout <= 0 {
		c.ContentTimeout = d.ContentTimeout
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	return c
}

// Validate 检查补齐默认值之后的参数。
func (c Config) Validate() error {
	if c.CollabWeight < 0 || c.ContentWeight < 0 {
		return fmt.Errorf("engine: weights must be non-negative, got %v/%v", c.CollabWeight, c.ContentWeight)
	}
	if c.HistoryArchive < c.HistoryWindow {
		return fmt.Errorf("engine: history_archive (%d) must be >= history_window (%d)", c.HistoryArchive, c.HistoryWindow)
	}
	return nil
}

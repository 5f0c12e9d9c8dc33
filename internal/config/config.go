package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port int `json:"port"`
	// One request per window per client on the search/rag routes.
	AIRateLimitSeconds int              `json:"ai_rate_limit_seconds"`
	LogConfig          logger.LogConfig `json:"log_config"`
	Database           DatabaseConfig   `json:"database"`
	FileStore          FileStoreConfig  `json:"file_store"`
	AI                 AIConfig         `json:"ai"`
	Cache              CacheConfig      `json:"cache"`
	Ingest             IngestConfig     `json:"ingest"`
	Search             SearchConfig     `json:"search"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIProviderConfig struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Data       interface{} `json:"data"`
}

type AIConfig struct {
	Providers      []AIProviderConfig `json:"providers"`
	FallbackOrder  []string           `json:"fallback_order"`
	EmbedProvider  string             `json:"embed_provider"`
	TimeoutSeconds int                `json:"timeout_seconds"`
}

type CacheConfig struct {
	Enable     bool `json:"enable"`
	LruSize    int  `json:"lru_size"`
	MaxAgeDays int  `json:"max_age_days"`
}

type IngestConfig struct {
	Workers             int `json:"workers"`
	QueueSize           int `json:"queue_size"`
	ChunkSize           int `json:"chunk_size"`
	ChunkOverlap        int `json:"chunk_overlap"`
	ReclaimAfterMinutes int `json:"reclaim_after_minutes"`
}

type SearchConfig struct {
	DefaultTopK   int     `json:"default_top_k"`
	OverFetch     int     `json:"over_fetch"`
	LengthPenalty float64 `json:"length_penalty"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if len(cfg.AI.Providers) == 0 {
		return nil, fmt.Errorf("ai.providers is required")
	}
	for i, p := range cfg.AI.Providers {
		if p.Name == "" || p.Type == "" {
			return nil, fmt.Errorf("ai.providers[%d] name/type are required", i)
		}
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AIRateLimitSeconds < 0 {
		cfg.AIRateLimitSeconds = 0
	}
	if cfg.Cache.LruSize <= 0 {
		cfg.Cache.LruSize = 10000
	}
	if cfg.Cache.MaxAgeDays <= 0 {
		cfg.Cache.MaxAgeDays = 30
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.QueueSize <= 0 {
		cfg.Ingest.QueueSize = 64
	}
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = 800
	}
	if cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize / 5
	}
	if cfg.Ingest.ReclaimAfterMinutes <= 0 {
		cfg.Ingest.ReclaimAfterMinutes = 60
	}
	if cfg.Search.DefaultTopK <= 0 {
		cfg.Search.DefaultTopK = 10
	}
	if cfg.Search.OverFetch <= 0 {
		cfg.Search.OverFetch = 3
	}
	return &cfg, nil
}

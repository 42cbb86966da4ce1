// Package config loads the orchestrator configuration from YAML with env
// overrides, following the convention CONFIG_PATH -> /app/config/plenumqa.yaml.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the full orchestrator configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	NLPService NLPServiceConfig `mapstructure:"nlp_service"`
	VectorDB   VectorDBConfig   `mapstructure:"vectordb"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port        int `mapstructure:"port"`
	HealthPort  int `mapstructure:"health_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

type NLPServiceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
}

type VectorDBConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	TopK       int           `mapstructure:"top_k"`
	Threshold  float64       `mapstructure:"threshold"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type EmbeddingsConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	DefaultModel string        `mapstructure:"default_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MaxLRU       int           `mapstructure:"max_lru"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// PipelineConfig carries the tunables of the QA stage graph. The hot-reload
// watcher may swap this section at runtime.
type PipelineConfig struct {
	Expansion   ExpansionConfig `mapstructure:"expansion"`
	Decompose   DecomposeConfig `mapstructure:"decompose"`
	Retrieval   RetrievalConfig `mapstructure:"retrieval"`
	Synthesis   SynthesisConfig `mapstructure:"synthesis"`
	TopicsPath  string          `mapstructure:"topics_path"`
	PartiesPath string          `mapstructure:"parties_path"`
}

type ExpansionConfig struct {
	MinVariants int  `mapstructure:"min_variants"`
	MaxVariants int  `mapstructure:"max_variants"`
	MinLength   int  `mapstructure:"min_length"`
	MaxLength   int  `mapstructure:"max_length"`
	Concurrent  bool `mapstructure:"concurrent"`
}

type DecomposeConfig struct {
	MaxSamplePoints int `mapstructure:"max_sample_points"`
	MaxTrendBuckets int `mapstructure:"max_trend_buckets"`
}

type RetrievalConfig struct {
	TopKPerQuery int `mapstructure:"top_k_per_query"`
	RerankTopN   int `mapstructure:"rerank_top_n"`
}

type SynthesisConfig struct {
	TopChunks        int  `mapstructure:"top_chunks"`
	MaxSources       int  `mapstructure:"max_sources"`
	RequireBothSides bool `mapstructure:"require_both_sides"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Path returns the config file path, honoring the CONFIG_PATH override.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "/app/config/plenumqa.yaml"
}

// Load reads the config file and applies defaults and env overrides. A
// missing file is not an error; defaults apply.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads a specific config file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(underlying(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok && u.Unwrap() != nil {
		return u.Unwrap()
	}
	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.metrics_port", 2112)

	v.SetDefault("nlp_service.base_url", "http://nlp-service:8000")
	v.SetDefault("nlp_service.timeout", "30s")
	v.SetDefault("nlp_service.generation_timeout", "120s")

	v.SetDefault("vectordb.host", "qdrant")
	v.SetDefault("vectordb.port", 6333)
	v.SetDefault("vectordb.collection", "speech_chunks")
	v.SetDefault("vectordb.top_k", 10)
	v.SetDefault("vectordb.threshold", 0.0)
	v.SetDefault("vectordb.timeout", "5s")

	v.SetDefault("embeddings.base_url", "http://nlp-service:8000")
	v.SetDefault("embeddings.default_model", "text-embedding-3-small")
	v.SetDefault("embeddings.timeout", "5s")
	v.SetDefault("embeddings.cache_ttl", "1h")
	v.SetDefault("embeddings.max_lru", 2048)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "redis:6379")

	v.SetDefault("pipeline.expansion.min_variants", 5)
	v.SetDefault("pipeline.expansion.max_variants", 7)
	v.SetDefault("pipeline.expansion.min_length", 15)
	v.SetDefault("pipeline.expansion.max_length", 120)
	v.SetDefault("pipeline.expansion.concurrent", true)
	v.SetDefault("pipeline.decompose.max_sample_points", 5)
	v.SetDefault("pipeline.decompose.max_trend_buckets", 4)
	v.SetDefault("pipeline.retrieval.top_k_per_query", 10)
	v.SetDefault("pipeline.retrieval.rerank_top_n", 0)
	v.SetDefault("pipeline.synthesis.top_chunks", 8)
	v.SetDefault("pipeline.synthesis.max_sources", 20)
	v.SetDefault("pipeline.synthesis.require_both_sides", true)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.dir", "/app/data/audit")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "plenumqa-orchestrator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func applyEnvOverrides(cfg *Config) {
	if u := os.Getenv("NLP_SERVICE_URL"); u != "" {
		cfg.NLPService.BaseURL = u
		cfg.Embeddings.BaseURL = u
	}
	if h := os.Getenv("QDRANT_HOST"); h != "" {
		cfg.VectorDB.Host = h
	}
	if p := os.Getenv("QDRANT_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			cfg.VectorDB.Port = n
		}
	}
	if a := os.Getenv("REDIS_ADDR"); a != "" {
		cfg.Redis.Addr = a
		cfg.Redis.Enabled = true
	}
	if d := os.Getenv("AUDIT_DIR"); d != "" {
		cfg.Audit.Dir = d
	}
	if p := os.Getenv("METRICS_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			cfg.Server.MetricsPort = n
		}
	}
	if p := os.Getenv("HEALTH_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			cfg.Server.HealthPort = n
		}
	}
}

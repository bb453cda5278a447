package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the newsrag API configuration. It is loaded once at startup
// and passed into component constructors; no component reads ambient state
// at call time.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IndexConfig holds vector index backend settings.
type IndexConfig struct {
	Backend          string   `yaml:"backend"` // memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	MaxRetries  int    `yaml:"max_retries"`
	RetryBaseMS int    `yaml:"retry_base_ms"`
	BatchSize   int    `yaml:"batch_size"`
	Parallelism int    `yaml:"parallelism"` // concurrent batch calls per ingestion job
}

// LLMConfig holds generation provider settings.
type LLMConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	RequestTimeout int     `yaml:"request_timeout_sec"`
}

// RetrievalConfig holds retrieval and re-ranking settings. The re-ranking
// weights are exposed here rather than hard-coded; the exact weighting is not
// load-bearing for correctness.
type RetrievalConfig struct {
	K                  int      `yaml:"k"`
	PerDocumentCap     int      `yaml:"per_document_cap"`
	Oversample         int      `yaml:"oversample"` // multiplier applied to k before dedup
	RecencyWeight      float64  `yaml:"recency_weight"`
	RecencyHalfLifeDay int      `yaml:"recency_half_life_days"`
	PreferredProviders []string `yaml:"preferred_providers"`
	ProviderBoost      float64  `yaml:"provider_boost"`
}

// ChunkingConfig holds document chunking settings.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"` // runes per chunk
	Overlap   int `yaml:"overlap"`    // runes of overlap between adjacent chunks
}

// PromptConfig holds prompt assembly settings.
type PromptConfig struct {
	ContextBudget int `yaml:"context_budget"` // runes of passage context per prompt
	MaxPassages   int `yaml:"max_passages"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Streaming responses hold the connection open for the whole
		// generation, so the write timeout covers the full request.
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "memory"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "newsrag:"
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.RetryBaseMS <= 0 {
		c.Embedding.RetryBaseMS = 200
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Parallelism <= 0 {
		c.Embedding.Parallelism = 4
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.RequestTimeout <= 0 {
		c.LLM.RequestTimeout = 120
	}
	if c.Retrieval.K <= 0 {
		c.Retrieval.K = 5
	}
	if c.Retrieval.PerDocumentCap <= 0 {
		c.Retrieval.PerDocumentCap = 2
	}
	if c.Retrieval.Oversample <= 0 {
		c.Retrieval.Oversample = 3
	}
	if c.Retrieval.RecencyHalfLifeDay <= 0 {
		c.Retrieval.RecencyHalfLifeDay = 30
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 500
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		c.Chunking.Overlap = c.Chunking.ChunkSize / 10
	}
	if c.Prompt.ContextBudget <= 0 {
		c.Prompt.ContextBudget = 6000
	}
	if c.Prompt.MaxPassages <= 0 {
		c.Prompt.MaxPassages = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Index.Backend {
	case "memory":
		// ok
	case "redis":
		if len(c.Index.Addrs) == 0 {
			return fmt.Errorf("index.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("index.backend must be \"memory\" or \"redis\", got %q", c.Index.Backend)
	}
	if c.Retrieval.ProviderBoost < 0 {
		return fmt.Errorf("retrieval.provider_boost must not be negative")
	}
	if c.Retrieval.RecencyWeight < 0 {
		return fmt.Errorf("retrieval.recency_weight must not be negative")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendFlat     = "flat"
	BackendPGVector = "pgvector"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	IndexBackend string `envconfig:"INDEX_BACKEND" default:"flat"`
	IndexDir     string `envconfig:"INDEX_DIR" default:"data/index"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	Temperature         float32 `envconfig:"TEMPERATURE" default:"0.2"`
	MaxTokens           int     `envconfig:"MAX_TOKENS" default:"1000"`
	SystemPrompt        string  `envconfig:"SYSTEM_PROMPT"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
	EmbeddingBatchSize  int     `envconfig:"EMBEDDING_BATCH_SIZE" default:"256"`

	// Generation
	RetryAttempts  int           `envconfig:"RETRY_ATTEMPTS" default:"4"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s"`
	HistoryTurns   int           `envconfig:"HISTORY_TURNS" default:"6"`
	MaxContexts    int           `envconfig:"MAX_CONTEXTS" default:"8"`
	MaxTopK        int           `envconfig:"MAX_TOP_K" default:"50"`

	// Ingestion
	CorpusDirs   map[string]string `envconfig:"CORPUS_DIRS" default:"nec:data/nec,wattmonk:data/wattmonk"`
	ChunkSize    int               `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap int               `envconfig:"CHUNK_OVERLAP" default:"150"`
	IntentsFile  string            `envconfig:"INTENTS_FILE"`

	// Static bearer keys guarding the API. Empty disables auth.
	APIKeys []string `envconfig:"API_KEYS"`

	RedisAddrs        []string      `envconfig:"REDIS_ADDRS"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"ragbot-index"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX" default:"index"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	TracesSampleRate float64 `envconfig:"TRACES_SAMPLE_RATE" default:"0.1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGBOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.IndexBackend {
	case BackendFlat:
	case BackendPGVector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("invalid config: DATABASE_URL is required for the %s backend", BackendPGVector)
		}
	default:
		return fmt.Errorf("invalid config: unknown INDEX_BACKEND %q", c.IndexBackend)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid config: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("invalid config: RETRY_ATTEMPTS must be at least 1")
	}
	if c.MaxTopK < 1 {
		return fmt.Errorf("invalid config: MAX_TOP_K must be at least 1")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func (c *Config) UsesPGVector() bool {
	return c.IndexBackend == BackendPGVector
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return len(c.RedisAddrs) > 0
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Environment
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	Server       ServerConfig
	Database     DatabaseConfig
	Cache        CacheConfig
	Queue        QueueConfig
	Auth         AuthConfig
	ReviewSource ReviewSourceConfig
	LLM          LLMConfig
	Enrichment   EnrichmentConfig
	Fetch        FetchConfig
	Storage      StorageConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection and pool settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	LogLevel        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // minutes
	MaxConnIdleTime int // minutes
}

// CacheConfig holds Redis settings used by the shared rate-limit window
type CacheConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  int // seconds
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	PoolSize     int
	MinIdleConns int
}

// QueueConfig holds asynq settings
type QueueConfig struct {
	RedisHost      string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	DialTimeout    int // seconds
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	Concurrency    int
	StrictPriority bool
	MaxRetry       int
	DrainUniqueTTL time.Duration
}

// AuthConfig holds caller authentication secrets
type AuthConfig struct {
	JWTSecret  string
	ServiceKey string
}

// ReviewSourceConfig holds settings for the Zembra review API
type ReviewSourceConfig struct {
	BaseURL        string
	APIToken       string
	WebhookToken   string
	RequestTimeout time.Duration
	PollDelays     []time.Duration
}

// LLMConfig holds OpenAI and rate limiting settings
type LLMConfig struct {
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	Temperature    float64
	RequestTimeout time.Duration
	MaxPerMinute   int

	// Rate limiter
	RateLimitBackend     string // redis | postgres | memory
	RateLimitWindow      time.Duration
	RateLimitJitter      time.Duration
	RateLimitCleanupRate float64
}

// EnrichmentConfig holds drain loop settings
type EnrichmentConfig struct {
	PageSize          int
	SubBatchSize      int
	MaxRetries        int
	RetryDelay        time.Duration
	PassBudget        time.Duration
	DefaultConfidence float64
	DefaultLanguage   string
}

// FetchConfig holds orchestrator settings
type FetchConfig struct {
	Cooldown       time.Duration
	MaxConcurrency int
}

// StorageConfig holds the webhook archive location
type StorageConfig struct {
	BasePath        string
	RetentionPeriod time.Duration
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using environment variables only")
		}
	}

	setDefaults()

	// Bind environment variables
	viper.AutomaticEnv()

	cfg := &Config{
		Environment: viper.GetString("ENV"),
		LogLevel:    viper.GetString("LOG_LEVEL"),
		Server: ServerConfig{
			Host:            viper.GetString("SERVER_HOST"),
			Port:            viper.GetString("SERVER_PORT"),
			ReadTimeout:     viper.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    viper.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: viper.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			LogLevel:        viper.GetString("DB_LOG_LEVEL"),
			MaxConnections:  viper.GetInt("DB_MAX_CONNECTIONS"),
			MinConnections:  viper.GetInt("DB_MIN_CONNECTIONS"),
			MaxConnLifetime: viper.GetInt("DB_MAX_CONN_LIFETIME_MINUTES"),
			MaxConnIdleTime: viper.GetInt("DB_MAX_CONN_IDLE_MINUTES"),
		},
		Cache: CacheConfig{
			Host:         viper.GetString("REDIS_HOST"),
			Port:         viper.GetInt("REDIS_PORT"),
			Password:     viper.GetString("REDIS_PASSWORD"),
			DB:           viper.GetInt("REDIS_DB"),
			DialTimeout:  viper.GetInt("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  viper.GetInt("REDIS_READ_TIMEOUT"),
			WriteTimeout: viper.GetInt("REDIS_WRITE_TIMEOUT"),
			PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		Queue: QueueConfig{
			RedisHost:      viper.GetString("REDIS_HOST"),
			RedisPort:      viper.GetInt("REDIS_PORT"),
			RedisPassword:  viper.GetString("REDIS_PASSWORD"),
			RedisDB:        viper.GetInt("QUEUE_REDIS_DB"),
			DialTimeout:    viper.GetInt("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:    viper.GetInt("REDIS_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("REDIS_WRITE_TIMEOUT"),
			Concurrency:    viper.GetInt("WORKER_CONCURRENCY"),
			StrictPriority: viper.GetBool("WORKER_STRICT_PRIORITY"),
			MaxRetry:       viper.GetInt("WORKER_MAX_RETRIES"),
			DrainUniqueTTL: viper.GetDuration("QUEUE_DRAIN_UNIQUE_TTL"),
		},
		Auth: AuthConfig{
			JWTSecret:  viper.GetString("JWT_SECRET"),
			ServiceKey: viper.GetString("SERVICE_KEY"),
		},
		ReviewSource: ReviewSourceConfig{
			BaseURL:        viper.GetString("ZEMBRA_BASE_URL"),
			APIToken:       viper.GetString("ZEMBRA_API_TOKEN"),
			WebhookToken:   viper.GetString("ZEMBRA_WEBHOOK_TOKEN"),
			RequestTimeout: viper.GetDuration("ZEMBRA_REQUEST_TIMEOUT"),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:         viper.GetString("OPENAI_API_KEY"),
			OpenAIBaseURL:        viper.GetString("OPENAI_BASE_URL"),
			OpenAIModel:          viper.GetString("OPENAI_MODEL"),
			Temperature:          viper.GetFloat64("OPENAI_TEMPERATURE"),
			RequestTimeout:       viper.GetDuration("OPENAI_REQUEST_TIMEOUT"),
			MaxPerMinute:         viper.GetInt("LLM_MAX_PER_MINUTE"),
			RateLimitBackend:     viper.GetString("LLM_RATE_LIMIT_BACKEND"),
			RateLimitWindow:      viper.GetDuration("LLM_RATE_LIMIT_WINDOW"),
			RateLimitJitter:      viper.GetDuration("LLM_RATE_LIMIT_JITTER"),
			RateLimitCleanupRate: viper.GetFloat64("LLM_RATE_LIMIT_CLEANUP_RATE"),
		},
		Enrichment: EnrichmentConfig{
			PageSize:          viper.GetInt("ENRICHMENT_PAGE_SIZE"),
			SubBatchSize:      viper.GetInt("ENRICHMENT_SUB_BATCH_SIZE"),
			MaxRetries:        viper.GetInt("ENRICHMENT_MAX_RETRIES"),
			RetryDelay:        viper.GetDuration("ENRICHMENT_RETRY_DELAY"),
			PassBudget:        viper.GetDuration("ENRICHMENT_PASS_BUDGET"),
			DefaultConfidence: viper.GetFloat64("ENRICHMENT_DEFAULT_CONFIDENCE"),
			DefaultLanguage:   viper.GetString("ENRICHMENT_DEFAULT_LANGUAGE"),
		},
		Fetch: FetchConfig{
			Cooldown:       viper.GetDuration("FETCH_COOLDOWN"),
			MaxConcurrency: viper.GetInt("FETCH_MAX_CONCURRENCY"),
		},
		Storage: StorageConfig{
			BasePath:        viper.GetString("STORAGE_BASE_PATH"),
			RetentionPeriod: viper.GetDuration("STORAGE_RETENTION"),
		},
	}

	for _, raw := range viper.GetStringSlice("ZEMBRA_POLL_DELAYS") {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ZEMBRA_POLL_DELAYS entry %q: %w", raw, err)
		}
		cfg.ReviewSource.PollDelays = append(cfg.ReviewSource.PollDelays, d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")

	// Server defaults
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_READ_TIMEOUT", "30s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10m")
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "25s")

	// Database defaults
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_NAME", "reviewinsights")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_LOG_LEVEL", "silent")
	viper.SetDefault("DB_MAX_CONNECTIONS", 25)
	viper.SetDefault("DB_MIN_CONNECTIONS", 5)
	viper.SetDefault("DB_MAX_CONN_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_MAX_CONN_IDLE_MINUTES", 5)

	// Redis defaults
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("QUEUE_REDIS_DB", 1)
	viper.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	viper.SetDefault("REDIS_READ_TIMEOUT", 3)
	viper.SetDefault("REDIS_WRITE_TIMEOUT", 3)
	viper.SetDefault("REDIS_POOL_SIZE", 20)
	viper.SetDefault("REDIS_MIN_IDLE_CONNS", 2)

	// Worker defaults
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("WORKER_STRICT_PRIORITY", false)
	viper.SetDefault("WORKER_MAX_RETRIES", 3)
	viper.SetDefault("QUEUE_DRAIN_UNIQUE_TTL", "15m")

	// Review source defaults
	viper.SetDefault("ZEMBRA_BASE_URL", "https://api.zembra.io")
	viper.SetDefault("ZEMBRA_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("ZEMBRA_POLL_DELAYS", []string{"10s", "15s", "20s"})

	// LLM defaults
	viper.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("OPENAI_TEMPERATURE", 0.2)
	viper.SetDefault("OPENAI_REQUEST_TIMEOUT", "90s")
	viper.SetDefault("LLM_MAX_PER_MINUTE", 50)
	viper.SetDefault("LLM_RATE_LIMIT_BACKEND", "redis")
	viper.SetDefault("LLM_RATE_LIMIT_WINDOW", "60s")
	viper.SetDefault("LLM_RATE_LIMIT_JITTER", "2s")
	viper.SetDefault("LLM_RATE_LIMIT_CLEANUP_RATE", 0.01)

	// Enrichment defaults
	viper.SetDefault("ENRICHMENT_PAGE_SIZE", 100)
	viper.SetDefault("ENRICHMENT_SUB_BATCH_SIZE", 5)
	viper.SetDefault("ENRICHMENT_MAX_RETRIES", 50)
	viper.SetDefault("ENRICHMENT_RETRY_DELAY", "10s")
	viper.SetDefault("ENRICHMENT_PASS_BUDGET", "5m")
	viper.SetDefault("ENRICHMENT_DEFAULT_CONFIDENCE", 0.85)
	viper.SetDefault("ENRICHMENT_DEFAULT_LANGUAGE", "en")

	// Fetch defaults
	viper.SetDefault("FETCH_COOLDOWN", "48h")
	viper.SetDefault("FETCH_MAX_CONCURRENCY", 8)

	// Storage defaults
	viper.SetDefault("STORAGE_BASE_PATH", "/tmp/review-insights")
	viper.SetDefault("STORAGE_RETENTION", "720h")
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.LLM.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.ReviewSource.APIToken == "" {
		return fmt.Errorf("ZEMBRA_API_TOKEN is required")
	}
	if c.ReviewSource.WebhookToken == "" {
		return fmt.Errorf("ZEMBRA_WEBHOOK_TOKEN is required")
	}
	if c.Auth.ServiceKey == "" {
		return fmt.Errorf("SERVICE_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.LLM.RateLimitBackend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("LLM_RATE_LIMIT_BACKEND must be one of redis, postgres, memory (got %q)", c.LLM.RateLimitBackend)
	}
	if c.Enrichment.SubBatchSize <= 0 || c.Enrichment.PageSize <= 0 {
		return fmt.Errorf("enrichment page and sub-batch sizes must be positive")
	}
	return nil
}

// ServerAddress returns host:port for the HTTP listener
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LogConfig logs the configuration (hiding sensitive data)
func (c *Config) LogConfig() {
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", c.Environment)
	log.Printf("  Server: %s", c.ServerAddress())
	log.Printf("  Database: %s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Database)
	log.Printf("  Redis: %s:%d (cache DB: %d, queue DB: %d)", c.Cache.Host, c.Cache.Port, c.Cache.DB, c.Queue.RedisDB)
	log.Printf("  Worker Concurrency: %d", c.Queue.Concurrency)
	log.Printf("  Fetch Cooldown: %s", c.Fetch.Cooldown)
	log.Printf("  Enrichment: page=%d sub-batch=%d max-retries=%d delay=%s",
		c.Enrichment.PageSize, c.Enrichment.SubBatchSize, c.Enrichment.MaxRetries, c.Enrichment.RetryDelay)
	log.Printf("  LLM: model=%s max/min=%d limiter=%s", c.LLM.OpenAIModel, c.LLM.MaxPerMinute, c.LLM.RateLimitBackend)

	logSecret("OpenAI API Key", c.LLM.OpenAIAPIKey)
	logSecret("Zembra API Token", c.ReviewSource.APIToken)
	logSecret("Zembra Webhook Token", c.ReviewSource.WebhookToken)
	logSecret("Service Key", c.Auth.ServiceKey)
	logSecret("JWT Secret", c.Auth.JWTSecret)
}

func logSecret(name, value string) {
	if value != "" {
		log.Printf("  %s: [CONFIGURED]", name)
	} else {
		log.Printf("  %s: [NOT SET]", name)
	}
}

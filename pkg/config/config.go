package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data providers
	Provider ProviderConfig

	// Scoring pipeline
	Pipeline PipelineConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	Enabled     bool
	KeyPrefix   string        // 모든 키 앞에 붙는 namespace
	DialTimeout time.Duration // 연결 + ping 제한
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether run persistence has a database to write to
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	// Primary: python subprocess adapter
	PythonPath  string
	ScriptsDir  string
	CallTimeout time.Duration

	// Fallback: Finnhub REST
	FinnhubAPIKey  string
	FinnhubBaseURL string

	// Circuit breaker in front of the primary provider
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerWindow       time.Duration
	BreakerTimeout      time.Duration
}

// PipelineConfig holds scoring run settings
type PipelineConfig struct {
	ScoringConfigPath string
	UniversePath      string
	Preset            string

	FetchConcurrency      int
	MonteCarloConcurrency int
	TopK                  int
	MonteCarloTopN        int

	UseBatch        bool
	BatchSize       int
	MinRequestDelay time.Duration

	FundamentalsTTL time.Duration
	TechnicalTTL    time.Duration
	ProfileTTL      time.Duration

	StaleAlertRatio float64
	Benchmark       string
}

// SchedulerConfig holds cron settings
type SchedulerConfig struct {
	ScoringSchedule    string
	CachePurgeSchedule string
	MaxRetries         int
	RetryDelay         time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "evidence"),
			User:            getEnv("DB_USER", "evidence"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			Enabled:     getEnvAsBool("REDIS_ENABLED", false),
			KeyPrefix:   getEnv("REDIS_KEY_PREFIX", "evidence"),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", "5s"),
		},

		Provider: ProviderConfig{
			PythonPath:          getEnv("PYTHON_PATH", "python3"),
			ScriptsDir:          getEnv("PROVIDER_SCRIPTS_DIR", "scripts"),
			CallTimeout:         getEnvAsDuration("PROVIDER_CALL_TIMEOUT", "45s"),
			FinnhubAPIKey:       getEnv("FINNHUB_API_KEY", ""),
			FinnhubBaseURL:      getEnv("FINNHUB_BASE_URL", "https://finnhub.io/api/v1"),
			BreakerMinRequests:  uint32(getEnvAsInt("PROVIDER_BREAKER_MIN_REQUESTS", 100)),
			BreakerFailureRatio: getEnvAsFloat("PROVIDER_BREAKER_FAILURE_RATIO", 0.8),
			BreakerWindow:       getEnvAsDuration("PROVIDER_BREAKER_WINDOW", "60s"),
			BreakerTimeout:      getEnvAsDuration("PROVIDER_BREAKER_TIMEOUT", "60s"),
		},

		Pipeline: PipelineConfig{
			ScoringConfigPath:     getEnv("SCORING_CONFIG_PATH", ""),
			UniversePath:          getEnv("UNIVERSE_PATH", "config/universe.yaml"),
			Preset:                getEnv("SCORING_PRESET", "default"),
			FetchConcurrency:      getEnvAsInt("FETCH_CONCURRENCY", 4),
			MonteCarloConcurrency: getEnvAsInt("MONTE_CARLO_CONCURRENCY", 2),
			TopK:                  getEnvAsInt("DEEP_TOP_K", 50),
			MonteCarloTopN:        getEnvAsInt("MONTE_CARLO_TOP_N", 30),
			UseBatch:              getEnvAsBool("FETCH_USE_BATCH", false),
			BatchSize:             getEnvAsInt("FETCH_BATCH_SIZE", 50),
			MinRequestDelay:       getEnvAsDuration("FETCH_MIN_REQUEST_DELAY", "250ms"),
			FundamentalsTTL:       getEnvAsDuration("CACHE_TTL_FUNDAMENTALS", "24h"),
			TechnicalTTL:          getEnvAsDuration("CACHE_TTL_TECHNICAL", "1h"),
			ProfileTTL:            getEnvAsDuration("CACHE_TTL_PROFILE", "168h"),
			StaleAlertRatio:       getEnvAsFloat("STALE_ALERT_RATIO", 0.10),
			Benchmark:             getEnv("REGIME_BENCHMARK", "SPY"),
		},

		Scheduler: SchedulerConfig{
			ScoringSchedule:    getEnv("SCORING_SCHEDULE", "0 30 22 * * 1-5"),
			CachePurgeSchedule: getEnv("CACHE_PURGE_SCHEDULE", "0 0 * * * *"),
			MaxRetries:         getEnvAsInt("SCHEDULER_MAX_RETRIES", 2),
			RetryDelay:         getEnvAsDuration("SCHEDULER_RETRY_DELAY", "5m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if c.Pipeline.MonteCarloConcurrency < 1 {
		return fmt.Errorf("MONTE_CARLO_CONCURRENCY must be >= 1")
	}
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("DEEP_TOP_K must be >= 1")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("FETCH_BATCH_SIZE must be >= 1")
	}
	if c.Pipeline.StaleAlertRatio < 0 || c.Pipeline.StaleAlertRatio > 1 {
		return fmt.Errorf("STALE_ALERT_RATIO must be within [0, 1]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",        // Current directory
		"config/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

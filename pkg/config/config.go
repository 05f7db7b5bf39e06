package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	API       APIConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// APIConfig holds tracker API client configuration
type APIConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RateLimit        float64 // requests per second, 0 disables limiting
	RateBurst        int
	BreakerEnabled   bool
	BreakerThreshold int // consecutive failures before the breaker opens
	BreakerTimeout   time.Duration
}

// CacheConfig holds client-side cache and batching configuration
type CacheConfig struct {
	SessionID        string
	ChannelChunkSize int
	TimeseriesMetric string
	TimeseriesDays   int
}

// RedisConfig holds the optional shared metadata mirror configuration
type RedisConfig struct {
	URL     string
	Enabled bool
	TTL     time.Duration
}

// ServerConfig holds dashboard HTTP server configuration
type ServerConfig struct {
	Port int
	Host string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	ServiceName       string
}

// TimeseriesMetrics lists the metrics accepted by the time-series endpoint.
var TimeseriesMetrics = []string{"view_count", "like_count", "comment_count"}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("YTA")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.yta")
	viper.AddConfigPath("/etc/yta")

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found; this is OK if we have env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:          strings.TrimRight(getString("api_base_url", "http://localhost:8000"), "/"),
			Timeout:          GetDuration("api_timeout", 30*time.Second),
			RateLimit:        getFloat("api_rate_limit", 10),
			RateBurst:        getInt("api_rate_burst", 5),
			BreakerEnabled:   getBool("api_breaker_enabled", true),
			BreakerThreshold: getInt("api_breaker_threshold", 5),
			BreakerTimeout:   GetDuration("api_breaker_timeout", 30*time.Second),
		},
		Cache: CacheConfig{
			SessionID:        getString("session_id", ""),
			ChannelChunkSize: getInt("channel_chunk_size", 40),
			TimeseriesMetric: getString("timeseries_metric", "view_count"),
			TimeseriesDays:   getInt("timeseries_days", 7),
		},
		Redis: RedisConfig{
			URL:     getString("redis_url", ""),
			Enabled: getString("redis_url", "") != "",
			TTL:     GetDuration("redis_ttl", 6*time.Hour),
		},
		Server: ServerConfig{
			Port: getInt("http_server_port", 8090),
			Host: getString("http_server_host", "0.0.0.0"),
		},
		Logging: LoggingConfig{
			Level:  getString("log_level", "INFO"),
			Format: getString("log_format", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           getBool("telemetry_enabled", false),
			JaegerURL:         getString("jaeger_url", ""),
			PrometheusEnabled: getBool("prometheus_enabled", true),
			ServiceName:       getString("service_name", "yta-dashboard"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("api_base_url", "http://localhost:8000")
	viper.SetDefault("api_timeout", "30s")
	viper.SetDefault("api_rate_limit", 10)
	viper.SetDefault("api_rate_burst", 5)
	viper.SetDefault("api_breaker_enabled", true)
	viper.SetDefault("api_breaker_threshold", 5)
	viper.SetDefault("api_breaker_timeout", "30s")
	viper.SetDefault("channel_chunk_size", 40)
	viper.SetDefault("timeseries_metric", "view_count")
	viper.SetDefault("timeseries_days", 7)
	viper.SetDefault("redis_ttl", "6h")
	viper.SetDefault("http_server_port", 8090)
	viper.SetDefault("http_server_host", "0.0.0.0")
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("telemetry_enabled", false)
	viper.SetDefault("prometheus_enabled", true)
	viper.SetDefault("service_name", "yta-dashboard")
}

func getString(key, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	// Also check environment variable directly
	if val := os.Getenv("YTA_" + toEnvKey(key)); val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	if val := os.Getenv("YTA_" + toEnvKey(key)); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	if val := os.Getenv("YTA_" + toEnvKey(key)); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	if val := os.Getenv("YTA_" + toEnvKey(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

// toEnvKey converts snake_case or kebab-case keys to UPPER_SNAKE_CASE
func toEnvKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api_timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api_rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.RateBurst <= 0 {
		return fmt.Errorf("api_rate_burst must be positive when rate limiting is enabled")
	}
	if c.API.BreakerEnabled && c.API.BreakerThreshold <= 0 {
		return fmt.Errorf("api_breaker_threshold must be positive")
	}
	if c.Cache.ChannelChunkSize <= 0 || c.Cache.ChannelChunkSize > 200 {
		return fmt.Errorf("channel_chunk_size must be between 1 and 200")
	}
	if !slices.Contains(TimeseriesMetrics, c.Cache.TimeseriesMetric) {
		return fmt.Errorf("timeseries_metric must be one of %s", strings.Join(TimeseriesMetrics, "|"))
	}
	if c.Cache.TimeseriesDays <= 0 || c.Cache.TimeseriesDays > 90 {
		return fmt.Errorf("timeseries_days must be between 1 and 90")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("http_server_port must be between 1 and 65535")
	}
	return nil
}

// GetDuration returns a duration from config key, with default
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	if val := os.Getenv("YTA_" + toEnvKey(key)); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

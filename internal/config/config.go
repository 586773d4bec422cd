package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. WATTWATCH_API_KEY.
const EnvPrefix = "WATTWATCH"

// Config holds all configuration for our application
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// APIConfig configures the telemetry API client.
type APIConfig struct {
	Endpoint       string            `mapstructure:"endpoint"`
	Key            string            `mapstructure:"key"`
	Timezone       string            `mapstructure:"timezone"`
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration     `mapstructure:"read_timeout"`
	Retry          int               `mapstructure:"retry"`
	RateLimit      float64           `mapstructure:"rate_limit"` // client-side requests per second, 0 disables pacing
	RateLimitBurst int               `mapstructure:"rate_limit_burst"`
	Concurrency    int               `mapstructure:"concurrency"` // windows fetched in parallel
	Headers        map[string]string `mapstructure:"headers"`
}

// ServerConfig configures the daemon's gRPC and metrics listeners.
type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	Host           string  `mapstructure:"host"`
	MetricsPort    int     `mapstructure:"metrics_port"`
	RateLimit      float64 `mapstructure:"rate_limit"` // gRPC requests per second, 0 disables limiting
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.ConnectionTimeout,
	)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SyncConfig drives the background telemetry sync.
type SyncConfig struct {
	Schedule        string        `mapstructure:"schedule"`
	Granularity     string        `mapstructure:"granularity"`
	Lookback        time.Duration `mapstructure:"lookback"`
	CursorCacheSize int           `mapstructure:"cursor_cache_size"`
	Devices         []string      `mapstructure:"devices"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// First unmarshal into a map to handle type conversions
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	// Convert the map to YAML again
	data, err = yaml.Marshal(rawConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadConfig(bytes.NewBufferString(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Default returns the configuration produced by an empty config file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// Defaults only contain well-typed values.
	_ = v.Unmarshal(&config)
	return &config
}

// Validate checks the API section; the daemon additionally needs Database.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.Key) == "" {
		errs = append(errs, errors.New("api.key is required"))
	}
	if u, err := url.Parse(c.API.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.endpoint %q is not an absolute URL", c.API.Endpoint))
	}
	if c.API.ConnectTimeout <= 0 || c.API.ReadTimeout <= 0 {
		errs = append(errs, errors.New("api timeouts must be positive"))
	}
	if c.API.Retry < 0 {
		errs = append(errs, errors.New("api.retry must not be negative"))
	}
	if c.API.Concurrency < 1 {
		errs = append(errs, errors.New("api.concurrency must be at least 1"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit must not be negative"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.endpoint", "https://api-v3.wattwatchers.com.au")
	v.SetDefault("api.key", "")
	v.SetDefault("api.timezone", "")
	v.SetDefault("api.connect_timeout", 5*time.Second)
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.retry", 3)
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("api.rate_limit_burst", 1)
	v.SetDefault("api.concurrency", 1)

	v.SetDefault("server.port", 50051)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("sync.schedule", "*/15 * * * *")
	v.SetDefault("sync.granularity", "15m")
	v.SetDefault("sync.lookback", 24*time.Hour)
	v.SetDefault("sync.cursor_cache_size", 1024)
}

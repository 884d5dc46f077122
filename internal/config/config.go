package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Report   ReportConfig   `mapstructure:"report"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures Postgres. An empty URL selects the in-memory repository.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RedisConfig configures the redis snapshot store. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// SnapshotConfig configures the YAML snapshot of the in-memory repository.
type SnapshotConfig struct {
	File     string        `mapstructure:"file"`
	Interval time.Duration `mapstructure:"interval"`
}

// AuthConfig configures JWT validation.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LoggerConfig configures zap.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotifyConfig configures over-engagement notifications. An empty
// WebhookURL logs notifications instead of posting them.
type NotifyConfig struct {
	WebhookURL  string        `mapstructure:"webhook_url"`
	Template    string        `mapstructure:"template"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Attempts    uint          `mapstructure:"attempts"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	QueueSize   int           `mapstructure:"queue_size"`
}

// ReportConfig configures exported documents.
type ReportConfig struct {
	Organization string `mapstructure:"organization"`
}

// ErrMissingJWTSecret is returned by ValidateServe without auth.jwt_secret.
var ErrMissingJWTSecret = errors.New("config: auth.jwt_secret is required")

// Load reads .env, an optional config.yaml from . or ./configs, and
// environment overrides such as SERVER_ADDR for server.addr.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// ValidateServe checks the settings the HTTP server cannot run without.
func (c *Config) ValidateServe() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "grants:snapshot")
	v.SetDefault("snapshot.file", "data/grants.yaml")
	v.SetDefault("snapshot.interval", 30*time.Second)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.template", "")
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.attempts", 3)
	v.SetDefault("notify.dedup_window", time.Hour)
	v.SetDefault("notify.rate_limit", 5.0)
	v.SetDefault("notify.queue_size", 100)
	v.SetDefault("report.organization", "")
}

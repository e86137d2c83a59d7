package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Onboarding OnboardingConfig `mapstructure:"onboarding"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig selects the backend user-profile store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "mongo" or "memory"
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// StorageConfig selects where onboarding progress is kept between requests.
type StorageConfig struct {
	Driver string      `mapstructure:"driver"` // "memory", "redis" or "s3"
	Redis  RedisConfig `mapstructure:"redis"`
	S3     S3Config    `mapstructure:"s3"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
}

// JWTConfig defines JWT specific configuration. Expiration is only used when
// minting development tokens.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type OnboardingConfig struct {
	// SyncTimeout bounds every backend call made during completion.
	SyncTimeout time.Duration `mapstructure:"sync_timeout"`
	// OfflineMode completes onboarding after the local save alone.
	OfflineMode bool `mapstructure:"offline_mode"`
	// SessionIdleTTL drops cached onboarding sessions nobody has used for this long.
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RateLimitConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
	Burst          int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig reads configuration from path/config.yaml, a .env file in path
// and environment variables, in increasing order of precedence.
func LoadConfig(path string) (config Config, err error) {
	// A missing .env is normal outside local development.
	if err = godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv can override it during Unmarshal.
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "nutrition_onboarding")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.ttl", "720h")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.bucket_name", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("onboarding.sync_timeout", "10s")
	v.SetDefault("onboarding.offline_mode", false)
	v.SetDefault("onboarding.session_idle_ttl", "30m")
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.consecutive_failures", 5)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_sec", 5.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "onboarding")
}

// Validate checks that the selected drivers have what they need.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.JWT,
		validation.Field(&c.JWT.Secret, validation.Required.Error("is required")),
	); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In("mongo", "memory")),
		validation.Field(&c.Database.URI, validation.When(c.Database.Driver == "mongo", validation.Required)),
		validation.Field(&c.Database.Name, validation.When(c.Database.Driver == "mongo", validation.Required)),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Driver, validation.Required, validation.In("memory", "redis", "s3")),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	switch c.Storage.Driver {
	case "redis":
		if err := validation.ValidateStruct(&c.Storage.Redis,
			validation.Field(&c.Storage.Redis.Addr, validation.Required),
		); err != nil {
			return fmt.Errorf("storage.redis: %w", err)
		}
	case "s3":
		if err := validation.ValidateStruct(&c.Storage.S3,
			validation.Field(&c.Storage.S3.BucketName, validation.Required),
			validation.Field(&c.Storage.S3.Region, validation.Required),
		); err != nil {
			return fmt.Errorf("storage.s3: %w", err)
		}
	}

	if err := validation.ValidateStruct(&c.Onboarding,
		validation.Field(&c.Onboarding.SyncTimeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return fmt.Errorf("onboarding: %w", err)
	}
	return nil
}

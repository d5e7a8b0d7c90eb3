package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Borrow   BorrowConfig
	Tracing  TracingConfig
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

type ServerConfig struct {
	Port    string        `mapstructure:"SERVER_PORT"`
	Timeout time.Duration `mapstructure:"SERVER_TIMEOUT"`
}

type DatabaseConfig struct {
	Path          string `mapstructure:"DB_PATH"`
	BusyTimeoutMS int    `mapstructure:"DB_BUSY_TIMEOUT_MS"`
	MaxOpenConns  int    `mapstructure:"DB_MAX_OPEN_CONNS"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"REDIS_ENABLED"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	TokenTTL   time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost int           `mapstructure:"BCRYPT_COST"`
}

// BorrowConfig holds the lending rules.
type BorrowConfig struct {
	LateThreshold   time.Duration `mapstructure:"LATE_RETURN_THRESHOLD"`
	PenaltyDuration time.Duration `mapstructure:"PENALTY_DURATION"`
}

// TracingConfig selects the OTLP collector spans are exported to. Disabled
// tracing installs a no-op provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"OTEL_ENABLED"`
	Endpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT", 15*time.Second)
	v.SetDefault("DB_PATH", "data/library.db")
	v.SetDefault("DB_BUSY_TIMEOUT_MS", 5000)
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("LATE_RETURN_THRESHOLD", 7*24*time.Hour)
	v.SetDefault("PENALTY_DURATION", 3*24*time.Hour)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SERVICE_NAME", "librarian")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env file could not be loaded: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config

	cfg.AppEnv = v.GetString("APP_ENV")
	cfg.Server.Port = v.GetString("SERVER_PORT")
	cfg.Server.Timeout = v.GetDuration("SERVER_TIMEOUT")

	cfg.Database.Path = v.GetString("DB_PATH")
	cfg.Database.BusyTimeoutMS = v.GetInt("DB_BUSY_TIMEOUT_MS")
	cfg.Database.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")

	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	cfg.Auth.TokenTTL = v.GetDuration("TOKEN_TTL")
	cfg.Auth.BcryptCost = v.GetInt("BCRYPT_COST")

	cfg.Borrow.LateThreshold = v.GetDuration("LATE_RETURN_THRESHOLD")
	cfg.Borrow.PenaltyDuration = v.GetDuration("PENALTY_DURATION")

	cfg.Tracing.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.Tracing.Endpoint = v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Tracing.ServiceName = v.GetString("OTEL_SERVICE_NAME")

	cfg.LogLevel = v.GetString("LOG_LEVEL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Borrow.LateThreshold <= 0 || c.Borrow.PenaltyDuration <= 0 {
		return errors.New("LATE_RETURN_THRESHOLD and PENALTY_DURATION must be positive")
	}
	if c.Database.Path == "" {
		return errors.New("DB_PATH must be set")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("OTEL_EXPORTER_OTLP_ENDPOINT must be set when OTEL_ENABLED is true")
	}
	return nil
}

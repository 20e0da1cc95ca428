package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Log     LogConfig      `mapstructure:"log"`
	Pg      PgConfig       `mapstructure:"postgres"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Breaker BreakerConfig  `mapstructure:"breaker"`
	Symbols []SymbolConfig `mapstructure:"symbols"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// PgConfig selects the history store; an empty DSN keeps it in memory.
type PgConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig selects the snapshot cache; an empty Addr keeps it in memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BreakerConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	ErrorThreshold   float64       `mapstructure:"error_threshold"`
	VolumeThreshold  int64         `mapstructure:"volume_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	HalfOpenMaxCalls int64         `mapstructure:"half_open_max_calls"`
}

// SymbolConfig holds one symbol's trading rules as decimal strings.
type SymbolConfig struct {
	Symbol       string `mapstructure:"symbol"`
	TickSize     string `mapstructure:"tick_size"`
	MinOrderSize string `mapstructure:"min_order_size"`
	MaxOrderSize string `mapstructure:"max_order_size"`
}

// Load reads config.yaml from path (or the working directory) and overlays
// TRADING_* environment variables. Missing files fall back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRADING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("breaker.timeout", 5*time.Second)
	v.SetDefault("breaker.error_threshold", 50.0)
	v.SetDefault("breaker.volume_threshold", 10)
	v.SetDefault("breaker.reset_timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_max_calls", 3)
	v.SetDefault("symbols", []map[string]any{
		{"symbol": "BTC/USD", "tick_size": "0.01", "min_order_size": "0.0001", "max_order_size": "100"},
		{"symbol": "ETH/USD", "tick_size": "0.01", "min_order_size": "0.001", "max_order_size": "1000"},
	})
}

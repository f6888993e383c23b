package pubsub

import (
	"context"
	"fmt"
	"time"
)

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver string      `mapstructure:"driver"` // "memory", "redis"
	Redis  RedisConfig `mapstructure:"redis"`
	// Buffer is the per-subscriber queue length.
	Buffer int `mapstructure:"buffer"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Driver: "memory",
		Buffer: 256,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// NewPubSub creates a new PubSub instance based on the configuration.
func NewPubSub(ctx context.Context, cfg Config) (PubSub, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryPubSub(cfg.Buffer), nil
	case "redis":
		return NewRedisPubSub(ctx, cfg.Redis, cfg.Buffer)
	default:
		return nil, fmt.Errorf("unknown pubsub driver %q", cfg.Driver)
	}
}

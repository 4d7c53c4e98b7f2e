package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MemoryBackend as the Redis addr selects the in-process store backend
// (tests, local runs without a Redis).
const MemoryBackend = "memory"

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Counters struct {
		RetentionHours int `mapstructure:"retention_hours"`
	} `mapstructure:"counters"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Redis.Addr == "" { c.Redis.Addr = "localhost:6379" }
	if c.Redis.PoolSize == 0 { c.Redis.PoolSize = 10 }
	if c.Counters.RetentionHours <= 0 { c.Counters.RetentionHours = 48 }
}

// CounterTTL is how long a daily acceptance-counter bucket outlives its
// first touch.
func (c Config) CounterTTL() time.Duration {
	return time.Duration(c.Counters.RetentionHours) * time.Hour
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Log      LogConfig
	SeedDemo bool `env:"LAS_SEED_DEMO" envDefault:"false"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `env:"LAS_ADDR" envDefault:":8080"`
	TxTimeout         time.Duration `env:"LAS_TX_TIMEOUT" envDefault:"5s"`
	ReadHeaderTimeout time.Duration `env:"LAS_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"LAS_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"LAS_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"LAS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig selects the ledger store. An empty URL means in-memory.
type DatabaseConfig struct {
	URL          string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int    `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
}

// RedisConfig configures the lock server connection. An empty URL means
// locks are held in process.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LockConfig controls the per-lineage lease lock.
type LockConfig struct {
	Expire        time.Duration `env:"LAS_LOCK_EXPIRE" envDefault:"10s"`
	RetryInterval time.Duration `env:"LAS_LOCK_RETRY_INTERVAL" envDefault:"50ms"`
	WaitTimeout   time.Duration `env:"LAS_LOCK_WAIT_TIMEOUT" envDefault:"30s"`
	AutoRenewal   bool          `env:"LAS_LOCK_AUTO_RENEWAL" envDefault:"true"`
	KeyPrefix     string        `env:"LAS_LOCK_KEY_PREFIX" envDefault:"las:lock:"`
}

type LogConfig struct {
	Level  string `env:"LAS_LOG_LEVEL" envDefault:"info"`
	Format string `env:"LAS_LOG_FORMAT" envDefault:"json"`
}

// FromEnv builds a Config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Lock.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c LockConfig) validate() error {
	if c.Expire <= 0 {
		return fmt.Errorf("LAS_LOCK_EXPIRE must be positive, got %s", c.Expire)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("LAS_LOCK_RETRY_INTERVAL must be positive, got %s", c.RetryInterval)
	}
	return nil
}

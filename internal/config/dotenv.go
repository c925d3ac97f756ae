package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port                     string   `env:"PORT" envDefault:"8080"`
	DatabaseURL              string   `env:"DATABASE_URL"`
	RunMigrations            bool     `env:"RUN_MIGRATIONS" envDefault:"false"`
	DBMaxOpenConns           int      `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns           int      `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeSeconds int      `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSeconds int      `env:"DB_CONN_MAX_IDLE_SECONDS" envDefault:"60"`
	ResyncSeconds            int      `env:"RESYNC_SECONDS" envDefault:"30"`
	FeedBuffer               int      `env:"FEED_BUFFER" envDefault:"256"`
	ListenerMinReconnectSecs int      `env:"LISTENER_MIN_RECONNECT_SECONDS" envDefault:"1"`
	ListenerMaxReconnectSecs int      `env:"LISTENER_MAX_RECONNECT_SECONDS" envDefault:"30"`
	AllowedOrigins           []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Default returns the configuration defaults without consulting the
// process environment.
func Default() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	defaults := Default()
	if cfg.DBMaxOpenConns <= 0 {
		cfg.DBMaxOpenConns = defaults.DBMaxOpenConns
	}
	if cfg.DBMaxIdleConns <= 0 {
		cfg.DBMaxIdleConns = defaults.DBMaxIdleConns
	}
	if cfg.FeedBuffer <= 0 {
		cfg.FeedBuffer = defaults.FeedBuffer
	}
	if cfg.ListenerMaxReconnectSecs < cfg.ListenerMinReconnectSecs {
		cfg.ListenerMaxReconnectSecs = cfg.ListenerMinReconnectSecs
	}
	return cfg, nil
}

func (c Config) ResyncInterval() time.Duration {
	return time.Duration(c.ResyncSeconds) * time.Second
}

func (c Config) ListenerReconnect() (time.Duration, time.Duration) {
	return time.Duration(c.ListenerMinReconnectSecs) * time.Second,
		time.Duration(c.ListenerMaxReconnectSecs) * time.Second
}

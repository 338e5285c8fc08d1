// Package config loads runtime settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	BindAddr string `env:"BIND_ADDR" env-default:"127.0.0.1:8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	LogJSON  bool   `env:"LOG_JSON" env-default:"false"`

	// DATABASE_URL selects the backend: postgres:// connects to PostgreSQL,
	// anything else is treated as a SQLite file path.
	DatabaseURL string `env:"DATABASE_URL" env-default:"goban.db"`

	UploadRoot      string `env:"UPLOAD_ROOT" env-default:"./data/uploads"`
	UploadURLPrefix string `env:"UPLOAD_URL_PREFIX" env-default:"/static/uploads"`
	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES" env-default:"8388608"`

	// SessionSecret is hex-encoded; empty means a fresh random secret per
	// process, which rotates every thread pseudonym on restart.
	SessionSecret string `env:"SESSION_SECRET"`

	// BoardsFile points at a yaml file of boards to provision at startup.
	BoardsFile string `env:"BOARDS_FILE"`

	ModeratorPasswordHash string        `env:"MODERATOR_PASSWORD_HASH"`
	JWTKey                string        `env:"JWT_KEY"`
	BanRefreshInterval    time.Duration `env:"BAN_REFRESH_INTERVAL" env-default:"30s"`
}

func Load() (*Config, error) {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.BanRefreshInterval <= 0 {
		return fmt.Errorf("BAN_REFRESH_INTERVAL must be positive, got %s", c.BanRefreshInterval)
	}
	if c.BoardsFile != "" {
		if _, err := os.Stat(c.BoardsFile); err != nil {
			return fmt.Errorf("BOARDS_FILE: %w", err)
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port" env:"SIDEQUEST_PORT"`
		ReadTimeout  string   `yaml:"read_timeout" env:"SIDEQUEST_READ_TIMEOUT"`
		WriteTimeout string   `yaml:"write_timeout" env:"SIDEQUEST_WRITE_TIMEOUT"`
		CORSOrigins  []string `yaml:"cors_origins" env:"SIDEQUEST_CORS_ORIGINS" envSeparator:","`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"SIDEQUEST_LOG_LEVEL"`
	} `yaml:"log"`
	Storage struct {
		Driver      string `yaml:"driver" env:"SIDEQUEST_STORAGE_DRIVER"`
		PostgresURL string `yaml:"postgres_url" env:"SIDEQUEST_POSTGRES_URL"`
		SQLitePath  string `yaml:"sqlite_path" env:"SIDEQUEST_SQLITE_PATH"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" env:"SIDEQUEST_REDIS_ADDR"`
		Password string `yaml:"password" env:"SIDEQUEST_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"SIDEQUEST_REDIS_DB"`
	} `yaml:"redis"`
	Quest struct {
		TTL string `yaml:"ttl" env:"SIDEQUEST_QUEST_TTL"`
	} `yaml:"quest"`
	Session struct {
		Secret     string `yaml:"secret" env:"SIDEQUEST_SESSION_SECRET"`
		TTL        string `yaml:"ttl" env:"SIDEQUEST_SESSION_TTL"`
		CookieName string `yaml:"cookie_name" env:"SIDEQUEST_SESSION_COOKIE"`
		Secure     bool   `yaml:"secure_cookie" env:"SIDEQUEST_SESSION_SECURE"`
	} `yaml:"session"`
	Cache struct {
		CompletedTTL string `yaml:"completed_ttl" env:"SIDEQUEST_COMPLETED_TTL"`
	} `yaml:"cache"`
	Admin struct {
		APIKey string `yaml:"api_key" env:"SIDEQUEST_ADMIN_KEY"`
	} `yaml:"admin"`
	Seed struct {
		QuestsFile string `yaml:"quests_file" env:"SIDEQUEST_SEED_QUESTS"`
	} `yaml:"seed"`
}

// Load reads YAML config from path, then applies SIDEQUEST_* environment overrides.
// A missing file is not an error; the environment and defaults still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sidequest_session"
	}
	if c.Seed.QuestsFile == "" {
		c.Seed.QuestsFile = "config/quests.yaml"
	}
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

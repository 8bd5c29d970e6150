package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"net/url"
	"time"

	"github.com/garnizeh/evalassign/pkg/webhook"
	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

// Counter backends.
const (
	CounterSQLite = "sqlite"
	CounterRedis  = "redis"
)

type Config struct {
	Addr           string         `yaml:"addr"`
	JWTSecret      string         `yaml:"jwt_secret"`
	APITimeout     time.Duration  `yaml:"timeout"`
	DatabasePath   string         `yaml:"database_path"`
	TokenDuration  time.Duration  `yaml:"token_duration"`
	MigrateOnStart bool           `yaml:"migrate_on_start"`
	LogLevel       string         `yaml:"log_level"`
	Matching       MatchingConfig `yaml:"matching"`
	Counter        CounterConfig  `yaml:"counter"`
	Jobs           JobsConfig     `yaml:"jobs"`
	Notify         webhook.Config `yaml:"notify"`
}

type MatchingConfig struct {
	IDPrefix              string `yaml:"id_prefix"`
	IDWidth               int    `yaml:"id_width"`
	EnforceMaxAssignments bool   `yaml:"enforce_max_assignments"`
	AutoMatchConcurrency  int    `yaml:"auto_match_concurrency"`
}

type CounterConfig struct {
	// Backend is "sqlite" (default) or "redis".
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type JobsConfig struct {
	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`
}

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	tokenDuration := 1 * time.Hour

	backend := CounterSQLite
	redisAddr := getEnv("EVAL_REDIS_ADDR", "")
	if redisAddr != "" {
		backend = CounterRedis
	}

	cfg := &Config{
		Addr:          getEnv("EVAL_ADDR", ":8080"),
		JWTSecret:     getEnv("EVAL_JWT_SECRET", insecureJWTSecret),
		APITimeout:    apiTimeout,
		DatabasePath:  getEnv("EVAL_DATABASE_PATH", "evalassign.db"),
		TokenDuration: tokenDuration,
		LogLevel:      getEnv("EVAL_LOG_LEVEL", "info"),
		Matching: MatchingConfig{
			IDPrefix:              "ASSIGN",
			IDWidth:               2,
			EnforceMaxAssignments: true,
			AutoMatchConcurrency:  4,
		},
		Counter: CounterConfig{
			Backend:   backend,
			RedisAddr: redisAddr,
			KeyPrefix: "evalassign:counter:",
		},
		Jobs:   JobsConfig{Workers: 2, MaxAttempts: 5},
		Notify: webhook.DefaultConfig(),
	}
	cfg.Notify.URL = getEnv("EVAL_NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.Secret = getEnv("EVAL_NOTIFY_WEBHOOK_SECRET", "")
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the loaded configuration. The default JWT secret is only
// accepted when EVAL_ENV is "development".
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == insecureJWTSecret && os.Getenv("EVAL_ENV") != "development" {
		errs = append(errs, errors.New("jwt_secret uses the insecure default; set EVAL_JWT_SECRET or EVAL_ENV=development"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, errors.New("token_duration must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.Matching.IDPrefix == "" {
		errs = append(errs, errors.New("matching.id_prefix is required"))
	}
	if c.Matching.IDWidth <= 0 {
		errs = append(errs, errors.New("matching.id_width must be positive"))
	}
	if c.Matching.AutoMatchConcurrency <= 0 {
		errs = append(errs, errors.New("matching.auto_match_concurrency must be positive"))
	}

	switch c.Counter.Backend {
	case CounterSQLite:
	case CounterRedis:
		if c.Counter.RedisAddr == "" {
			errs = append(errs, errors.New("counter.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("counter.backend %q is not one of sqlite, redis", c.Counter.Backend))
	}

	if c.Jobs.Workers < 0 {
		errs = append(errs, errors.New("jobs.workers must not be negative"))
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}

	if c.Notify.URL != "" {
		if u, err := url.Parse(c.Notify.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("notify.url %q must be an absolute http(s) URL", c.Notify.URL))
		}
		if c.Jobs.Workers == 0 {
			errs = append(errs, errors.New("notify.url requires jobs.workers > 0"))
		}
	}

	return errors.Join(errs...)
}

// ParseLevel maps a log_level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q is not one of debug, info, warn, error", s)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	Port               string `json:"port"`
	RequestTimeoutSec  int    `json:"request_timeout_sec"`
	ShutdownTimeoutSec int    `json:"shutdown_timeout_sec"`
}

type Oracle struct {
	Admin      string `json:"admin"`
	BaseSymbol string `json:"base_symbol"`
	InstanceID string `json:"instance_id"`
}

type Auth struct {
	Secret      string `json:"secret"`
	Issuer      string `json:"issuer"`
	TokenTTLSec int    `json:"token_ttl_sec"`
}

type Storage struct {
	Driver        string `json:"driver"`
	PostgresDSN   string `json:"postgres_dsn"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisPrefix   string `json:"redis_prefix"`
	CacheTTLSec   int    `json:"cache_ttl_sec"`
	CacheMaxItems int    `json:"cache_max_items"`
}

type RateLimit struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

type Log struct {
	Level string `json:"level"`
	Stage string `json:"stage"`
}

type Relayer struct {
	Endpoint              string            `json:"endpoint"`
	Tokens                []string          `json:"tokens"`
	SourceURL             string            `json:"source_url"`
	SourceHeaders         map[string]string `json:"source_headers"`
	Symbols               []string          `json:"symbols"`
	Schedule              string            `json:"schedule"`
	MaxTry                int               `json:"max_try"`
	QueueSize             int               `json:"queue_size"`
	RequestTimeoutSec     int               `json:"request_timeout_sec"`
	BackoffInitialMs      int               `json:"backoff_initial_ms"`
	BackoffMaxMs          int               `json:"backoff_max_ms"`
	MaxRequestsPerMinute  int               `json:"max_requests_per_minute"`
	MinRequestIntervalSec int               `json:"min_request_interval_sec"`
	Burst                 int               `json:"burst"`
}

type Config struct {
	Server    Server    `json:"server"`
	Oracle    Oracle    `json:"oracle"`
	Auth      Auth      `json:"auth"`
	Storage   Storage   `json:"storage"`
	RateLimit RateLimit `json:"rate_limit"`
	Log       Log       `json:"log"`
	Relayer   Relayer   `json:"relayer"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10, ShutdownTimeoutSec: 5},
		Oracle: Oracle{BaseSymbol: "USD"},
		Auth:   Auth{Issuer: "stdref", TokenTTLSec: 0},
		Storage: Storage{
			Driver:        DriverMemory,
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "stdref:",
			CacheTTLSec:   0,
			CacheMaxItems: 10000,
		},
		RateLimit: RateLimit{RequestsPerSecond: 20, Burst: 40},
		Log:       Log{Level: "info", Stage: "dev"},
		Relayer: Relayer{
			Endpoint:          "http://localhost:8080",
			Schedule:          "@every 1m",
			MaxTry:            5,
			QueueSize:         16,
			RequestTimeoutSec: 10,
			BackoffInitialMs:  500,
			BackoffMaxMs:      10000,
			Burst:             1,
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. A .env file in the working directory is loaded first,
// then environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("PORT", &cfg.Server.Port)
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)
	envInt("SHUTDOWN_TIMEOUT_SEC", &cfg.Server.ShutdownTimeoutSec, 1)

	envString("ORACLE_ADMIN", &cfg.Oracle.Admin)
	envString("ORACLE_BASE_SYMBOL", &cfg.Oracle.BaseSymbol)
	envString("ORACLE_INSTANCE_ID", &cfg.Oracle.InstanceID)

	envString("AUTH_SECRET", &cfg.Auth.Secret)
	envString("AUTH_ISSUER", &cfg.Auth.Issuer)
	envInt("AUTH_TOKEN_TTL_SEC", &cfg.Auth.TokenTTLSec, 0)

	envString("STORAGE_DRIVER", &cfg.Storage.Driver)
	envString("DATABASE_URL", &cfg.Storage.PostgresDSN)
	envString("REDIS_ADDR", &cfg.Storage.RedisAddr)
	envString("REDIS_PASSWORD", &cfg.Storage.RedisPassword)
	envInt("REDIS_DB", &cfg.Storage.RedisDB, 0)
	envString("REDIS_PREFIX", &cfg.Storage.RedisPrefix)
	envInt("STORAGE_CACHE_TTL_SEC", &cfg.Storage.CacheTTLSec, 0)
	envInt("STORAGE_CACHE_MAX_ITEMS", &cfg.Storage.CacheMaxItems, 1)

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil && x >= 0 {
			cfg.RateLimit.RequestsPerSecond = x
		}
	}
	envInt("RATE_LIMIT_BURST", &cfg.RateLimit.Burst, 1)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("STAGE", &cfg.Log.Stage)

	envString("RELAYER_ENDPOINT", &cfg.Relayer.Endpoint)
	if v := os.Getenv("RELAYER_TOKENS"); v != "" {
		cfg.Relayer.Tokens = splitCSV(v)
	}
	envString("RELAYER_SOURCE_URL", &cfg.Relayer.SourceURL)
	if v := os.Getenv("RELAYER_SYMBOLS"); v != "" {
		cfg.Relayer.Symbols = splitCSV(v)
	}
	envString("RELAYER_SCHEDULE", &cfg.Relayer.Schedule)
	envInt("RELAYER_MAX_TRY", &cfg.Relayer.MaxTry, 1)
	envInt("RELAYER_QUEUE_SIZE", &cfg.Relayer.QueueSize, 1)
	envInt("RELAYER_REQUEST_TIMEOUT_SEC", &cfg.Relayer.RequestTimeoutSec, 1)
	envInt("RELAYER_MAX_RPM", &cfg.Relayer.MaxRequestsPerMinute, 0)
	envInt("RELAYER_MIN_INTERVAL_SEC", &cfg.Relayer.MinRequestIntervalSec, 0)
	envInt("RELAYER_BURST", &cfg.Relayer.Burst, 1)
}

// ValidateServer checks the fields the oracle server cannot start without.
func (c Config) ValidateServer() error {
	var errs []error
	if strings.TrimSpace(c.Oracle.Admin) == "" {
		errs = append(errs, errors.New("oracle.admin is required"))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// ValidateRelayer checks the fields the relayer daemon cannot start without.
func (c Config) ValidateRelayer() error {
	var errs []error
	if len(c.Relayer.Tokens) == 0 {
		errs = append(errs, errors.New("relayer.tokens is required"))
	}
	if c.Relayer.SourceURL == "" {
		errs = append(errs, errors.New("relayer.source_url is required"))
	}
	if c.Relayer.Endpoint == "" {
		errs = append(errs, errors.New("relayer.endpoint is required"))
	}
	if c.Relayer.MaxTry <= 0 {
		errs = append(errs, errors.New("relayer.max_try must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt sets dst when key parses to an int of at least floor.
func envInt(key string, dst *int, floor int) {
	if v := os.Getenv(key); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x >= floor {
			*dst = x
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

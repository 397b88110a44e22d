package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Retry    RetryConfig    `koanf:"retry"`
	Worker   WorkerConfig   `koanf:"worker"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type LedgerConfig struct {
	RPCURL         string        `koanf:"rpc_url" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
	// PingInterval drives the connectivity probe that feeds the gate.
	PingInterval time.Duration `koanf:"ping_interval" validate:"required"`
	// ExpiryLedgers bounds how many ledgers a submitted transaction
	// stays a candidate before it is presumed expired.
	ExpiryLedgers uint32 `koanf:"expiry_ledgers" validate:"required"`
}

type StoreConfig struct {
	// Driver selects the record store: "memory" or "postgres".
	Driver string `koanf:"driver" validate:"required,oneof=memory postgres"`
	// LeaseTTL bounds how long a crashed submission can hold a key
	// before its reservation becomes re-claimable.
	LeaseTTL time.Duration `koanf:"lease_ttl" validate:"required"`
	// Retention is how long terminal records are kept before the
	// worker garbage-collects them.
	Retention time.Duration `koanf:"retention" validate:"required"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"required,min=1"`
	BaseDelay   time.Duration `koanf:"base_delay" validate:"required"`
}

type WorkerConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds the process logger at the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":            "5990",
		"server.read_timeout":    "15s",
		"server.write_timeout":   "15s",
		"server.idle_timeout":    "60s",
		"ledger.request_timeout": "10s",
		"ledger.ping_interval":   "5s",
		"ledger.expiry_ledgers":  uint32(8),
		"store.driver":           "memory",
		"store.lease_ttl":        "30s",
		"store.retention":        "24h",
		"retry.max_attempts":     3,
		"retry.base_delay":       "500ms",
		"worker.interval":        "10s",
		"worker.batch_size":      50,
		"logger.level":           "info",
	}
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("LEDGERREST_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "LEDGERREST_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	if err := k.Unmarshal("", mainConfig); err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	if err := validate.Struct(mainConfig); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

// Package config loads service configuration from defaults, an optional config
// file, .env files and CODESNIP_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "CODESNIP"

// Config holds all configuration settings.
type Config struct {
	Server        ServerConfig    `mapstructure:"server"`
	GRPC          GRPCConfig      `mapstructure:"grpc"`
	Storage       StorageConfig   `mapstructure:"storage"`
	Auth          AuthConfig      `mapstructure:"auth"`
	Analytics     AnalyticsConfig `mapstructure:"analytics"`
	Backup        BackupConfig    `mapstructure:"backup"`
	Admin         AdminConfig     `mapstructure:"admin"`
	Log           LogConfig       `mapstructure:"log"`
	LanguagesFile string          `mapstructure:"languages_file"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type GRPCConfig struct {
	// Addr enables the gRPC server when non-empty.
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // "sqlite", "bolt", "memory"
	SQLitePath string `mapstructure:"sqlite_path"`
	BoltPath   string `mapstructure:"bolt_path"`
}

type AuthConfig struct {
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RateLimit     float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst     int           `mapstructure:"rate_burst"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

type AnalyticsConfig struct {
	// ClickHouseAddr enables the ClickHouse view sink when non-empty.
	ClickHouseAddr     string        `mapstructure:"clickhouse_addr"`
	ClickHouseDatabase string        `mapstructure:"clickhouse_database"`
	ClickHouseUsername string        `mapstructure:"clickhouse_username"`
	ClickHousePassword string        `mapstructure:"clickhouse_password"`
	BatchSize          int           `mapstructure:"batch_size"`
	FlushInterval      time.Duration `mapstructure:"flush_interval"`
	// ViewersFile keeps unique-viewer sketches across restarts; empty disables it.
	ViewersFile string `mapstructure:"viewers_file"`
}

type BackupConfig struct {
	Dir        string `mapstructure:"dir"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxSize    int64  `mapstructure:"max_size"` // bytes
}

type AdminConfig struct {
	// Token guards the admin endpoints; empty disables them.
	Token string `mapstructure:"token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// defaults lists every key so that environment variables can override it.
var defaults = map[string]any{
	"server.addr":                   ":8080",
	"server.base_url":               "http://localhost:8080",
	"server.read_timeout":           15 * time.Second,
	"server.write_timeout":          30 * time.Second,
	"grpc.addr":                     "",
	"storage.backend":               "sqlite",
	"storage.sqlite_path":           "./data/codesnip.db",
	"storage.bolt_path":             "./data/codesnip.bolt",
	"auth.bcrypt_cost":              12,
	"auth.session_ttl":              30 * 24 * time.Hour,
	"auth.sweep_interval":           time.Hour,
	"auth.rate_limit":               1.0,
	"auth.rate_burst":               10,
	"auth.secure_cookies":           false,
	"analytics.clickhouse_addr":     "",
	"analytics.clickhouse_database": "codesnip",
	"analytics.clickhouse_username": "default",
	"analytics.clickhouse_password": "",
	"analytics.batch_size":          1000,
	"analytics.flush_interval":      5 * time.Second,
	"analytics.viewers_file":        "./data/viewers.json.gz",
	"backup.dir":                    "./data/backups",
	"backup.max_backups":            50,
	"backup.max_size":               int64(100 * 1024 * 1024),
	"admin.token":                   "",
	"log.level":                     "info",
	"log.format":                    "text",
	"languages_file":                "",
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: decoding defaults: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Load reads configuration. path names an explicit config file; when empty,
// codesnip.{yaml,toml,json} is looked up in the working directory and
// ./config, and its absence is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codesnip")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env files without overriding variables already set.
// .env.local is read first so it wins over .env.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			slog.Warn("loading env file", "file", file, "error", err)
		}
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "bolt", "memory":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q (supported: sqlite, bolt, memory)", c.Storage.Backend)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost: must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl: must be positive")
	}
	if c.Auth.SweepInterval <= 0 {
		return errors.New("auth.sweep_interval: must be positive")
	}
	if c.Auth.RateLimit <= 0 || c.Auth.RateBurst <= 0 {
		return errors.New("auth.rate_limit and auth.rate_burst: must be positive")
	}
	if c.Backup.MaxBackups <= 0 || c.Backup.MaxSize <= 0 {
		return errors.New("backup.max_backups and backup.max_size: must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (supported: text, json)", c.Log.Format)
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

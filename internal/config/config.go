// Package config loads service configuration: built-in defaults, then an
// optional YAML file, then environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Server        Server        `yaml:"server"`
	Database      Database      `yaml:"database"`
	Store         string        `yaml:"store"`
	Log           Log           `yaml:"log"`
	Capacity      Capacity      `yaml:"capacity"`
	Notifications Notifications `yaml:"notifications"`
	Chat          Chat          `yaml:"chat"`
	Dispatch      Dispatch      `yaml:"dispatch"`
}

// Server holds HTTP listener settings.
type Server struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// DSN builds a libpq-compatible connection string.
func (c Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Log controls logger output.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Capacity controls how capacity-gated operations are serialised. With Strict
// off, the participant count is read and acted on without a lock, so
// concurrent accepts can overshoot the capacity.
type Capacity struct {
	Strict bool `yaml:"strict"`
}

// Notifications controls notification expiry and retention.
type Notifications struct {
	TTL           time.Duration `yaml:"ttl"`
	Retention     time.Duration `yaml:"retention"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// Chat configures the event group-chat backend.
type Chat struct {
	Enabled            bool          `yaml:"enabled"`
	DataDir            string        `yaml:"data_dir"`
	DefaultCountryCode string        `yaml:"default_country_code"`
	FreezeAfter        time.Duration `yaml:"freeze_after"`
	FreezeInterval     time.Duration `yaml:"freeze_interval"`
}

// Dispatch tunes side-effect delivery.
type Dispatch struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "reservely",
			SSLMode:  "disable",
			MaxConns: 20,
			MinConns: 2,
		},
		Store: StorePostgres,
		Log:   Log{Level: "info"},
		Notifications: Notifications{
			TTL:           24 * time.Hour,
			Retention:     24 * time.Hour,
			PurgeInterval: 24 * time.Hour,
		},
		Chat: Chat{
			DataDir:            "data",
			DefaultCountryCode: "60",
			FreezeAfter:        2 * time.Hour,
			FreezeInterval:     time.Hour,
		},
		Dispatch: Dispatch{
			MaxAttempts: 4,
			BaseDelay:   200 * time.Millisecond,
			CallTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Store = getEnv("STORE", c.Store)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getBool("LOG_PRETTY", c.Log.Pretty)
	c.Capacity.Strict = getBool("CAPACITY_STRICT", c.Capacity.Strict)
	c.Chat.Enabled = getBool("WHATSAPP_ENABLED", c.Chat.Enabled)
	c.Chat.DataDir = getEnv("WHATSAPP_DATA_DIR", c.Chat.DataDir)
	c.Chat.DefaultCountryCode = getEnv("WHATSAPP_COUNTRY_CODE", c.Chat.DefaultCountryCode)
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("config: unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreMemory)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("config: invalid port %q", c.Server.Port)
	}
	if c.Notifications.TTL <= 0 || c.Notifications.Retention <= 0 || c.Notifications.PurgeInterval <= 0 {
		return errors.New("config: notification durations must be positive")
	}
	if c.Chat.FreezeAfter < 0 || c.Chat.FreezeInterval <= 0 {
		return errors.New("config: chat freeze durations must be positive")
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return errors.New("config: dispatch max_attempts must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Package config loads runtime settings from the environment. An optional
// .env file in the working directory is read first; variables already set
// in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvDBPath    = "MECSIS_DB_PATH"
	EnvTimeout   = "MECSIS_OP_TIMEOUT"
	EnvLogLevel  = "MECSIS_LOG_LEVEL"
	EnvLogFormat = "MECSIS_LOG_FORMAT"
	EnvCacheSize = "MECSIS_CACHE_SIZE"
)

const (
	// DefaultDBPath is the default location for the database
	DefaultDBPath    = "~/.mecsis/mecsis.db"
	DefaultTimeout   = 5 * time.Second
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultCacheSize = 256
)

// Config holds every runtime setting
type Config struct {
	DBPath    string
	OpTimeout time.Duration
	LogLevel  string
	LogFormat string
	CacheSize int
}

// Load reads .env (if present) and then the environment
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &Config{
		DBPath:    getenv(EnvDBPath, DefaultDBPath),
		OpTimeout: DefaultTimeout,
		LogLevel:  strings.ToLower(getenv(EnvLogLevel, DefaultLogLevel)),
		LogFormat: strings.ToLower(getenv(EnvLogFormat, DefaultLogFormat)),
		CacheSize: DefaultCacheSize,
	}

	if raw := os.Getenv(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive duration", EnvTimeout, raw)
		}
		cfg.OpTimeout = d
	}
	if raw := os.Getenv(EnvCacheSize); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive integer", EnvCacheSize, raw)
		}
		cfg.CacheSize = n
	}

	path, err := expandHome(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	cfg.DBPath = path
	return cfg, nil
}

// EnsureDBDir creates the directory holding the database file
func (c *Config) EnsureDBDir() error {
	if c.DBPath == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

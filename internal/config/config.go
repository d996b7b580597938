package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ara/internal/filters"
)

// MemoryDB selects an in-memory SQLite database.
const MemoryDB = ":memory:"

// Config holds all configuration for the ara web application
type Config struct {
	// Server configuration
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Addr string `yaml:"-"` // computed from Host:Port

	// Database
	DBPath    string `yaml:"database"` // user-provided
	AbsDBPath string `yaml:"-"`        // resolved/absolute path

	// Presentation
	PathMax int `yaml:"path_max"` // ARA_PATH_MAX

	// Logging
	LogLevel string `yaml:"log_level"` // debug|info|warn|error

	// Validation & computed
	Version   string    `yaml:"-"` // app version
	StartTime time.Time `yaml:"-"` // when the app started
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      9191,
		PathMax:   filters.DefaultPathMax,
		LogLevel:  "info",
		StartTime: time.Now(),
		Version:   "0.9.0",
	}
}

// LoadFile overlays settings from a YAML file onto c.
// Keys missing from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays ARA_* environment variables onto c.
func (c *Config) LoadEnv() error {
	return c.loadEnv(os.LookupEnv)
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ARA_HOST"); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup("ARA_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ARA_PORT: %w", err)
		}
		c.Port = n
	}
	if v, ok := lookup("ARA_DATABASE"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("ARA_PATH_MAX"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ARA_PATH_MAX: %w", err)
		}
		c.PathMax = n
	}
	if v, ok := lookup("ARA_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	// Validate port range
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}

	if c.PathMax < 1 {
		return fmt.Errorf("invalid path_max: %d (must be positive)", c.PathMax)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	c.LogLevel = strings.ToLower(c.LogLevel)
	valid := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (must be debug|info|warn|error)", c.LogLevel)
	}

	// Compute address
	c.Addr = c.ComputeAddr()

	return nil
}

// ResolveDBPath expands the database path and resolves it to an absolute path
// If empty, defaults to OS cache directory. MemoryDB is kept as is.
func (c *Config) ResolveDBPath() error {
	if c.DBPath == MemoryDB {
		c.AbsDBPath = MemoryDB
		return nil
	}
	if c.DBPath == "" {
		c.DBPath = defaultCacheDBPath()
	}

	// Expand ~ if present
	if strings.HasPrefix(c.DBPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("expand home directory: %w", err)
		}
		c.DBPath = filepath.Join(home, c.DBPath[2:]) // Skip "~/"
	}

	// Resolve to absolute path
	abs, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.DBPath, err)
	}
	c.AbsDBPath = abs

	return nil
}

// ComputeAddr returns the full server address as host:port
func (c *Config) ComputeAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a pretty-printed representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf(`Config{
  Server:
    Host: %s
    Port: %d
    Addr: %s
  Database:
    DBPath: %s (resolved: %s)
  Presentation:
    PathMax: %d
  Logging:
    LogLevel: %s
  Meta:
    Version: %s
    StartTime: %s
}`, c.Host, c.Port, c.Addr,
		c.DBPath, c.AbsDBPath,
		c.PathMax,
		c.LogLevel,
		c.Version, c.StartTime.Format(time.RFC3339))
}

// Summary returns a one-line summary of key configuration
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"addr":      c.Addr,
		"db_path":   c.AbsDBPath,
		"path_max":  c.PathMax,
		"log_level": c.LogLevel,
		"version":   c.Version,
	}
}

// defaultCacheDBPath returns the cross-platform default path for the SQLite DB
// - Windows: %APPDATA%/ara/ansible.sqlite
// - Linux/macOS: $HOME/.ara/ansible.sqlite
func defaultCacheDBPath() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "ara", "ansible.sqlite")
		}
		return "ansible.sqlite"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".ara", "ansible.sqlite")
	}
	// Fallback: place in working directory
	return filepath.Join(".ara", "ansible.sqlite")
}

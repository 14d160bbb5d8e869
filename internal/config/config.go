package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/aeromission/internal/avl"
	"github.com/yegors/aeromission/internal/errdefs"
	"github.com/yegors/aeromission/pkg/logger"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server    ServerConfig    `toml:"server"`    // HTTP server settings
	Logging   LoggingConfig   `toml:"logging"`   // Application logging settings
	Storage   StorageConfig   `toml:"storage"`   // Run history persistence settings
	Solver    SolverConfig    `toml:"solver"`    // External aerodynamic solver settings
	Mission   MissionConfig   `toml:"mission"`   // Mission sweep settings
	WebSocket WebSocketConfig `toml:"websocket"` // Progress streaming settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout); solves can take minutes
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional log file, rotated by size (empty = stdout only)
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate the log file after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Number of rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// StorageConfig contains run history persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path of the SQLite database file
}

// SolverConfig contains settings for the external vortex-lattice solver
type SolverConfig struct {
	AVLPath              string `toml:"avl_path"`               // Path or name of the solver executable
	WorkDir              string `toml:"work_dir"`               // Directory under which per-run working directories are created (empty = system temp)
	TimeoutSeconds       int    `toml:"timeout_seconds"`        // Wall-clock limit for one solver invocation
	MaxRetries           int    `toml:"max_retries"`            // Extra attempts after a run that produced no usable results
	KeepFiles            bool   `toml:"keep_files"`             // Keep per-run working directories for inspection
	CoefficientCacheSize int    `toml:"coefficient_cache_size"` // Trimmed coefficient sets cached per session
}

// MissionConfig contains mission sweep settings
type MissionConfig struct {
	Parallelism    int    `toml:"parallelism"`     // Maximum concurrent mission sweeps in a batch (0 = unlimited)
	DefaultProfile string `toml:"default_profile"` // Optional case file whose mission is used when a session has none
}

// WebSocketConfig contains progress streaming settings
type WebSocketConfig struct {
	Enabled bool `toml:"enabled"` // Stream solve progress events on /ws
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			Host:             "127.0.0.1",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 0,
			IdleTimeoutSecs:  120,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: "data/aeromission.db",
		},
		Solver: SolverConfig{
			AVLPath:              "avl",
			TimeoutSeconds:       60,
			MaxRetries:           1,
			CoefficientCacheSize: 256,
		},
		Mission: MissionConfig{
			Parallelism: 4,
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
		},
	}
}

// Load loads the configuration from a TOML file. Keys missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errdefs.Configf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Default location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errdefs.Configf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return errdefs.Configf("server timeouts must be >= 0")
	}

	// Validate logging config
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errdefs.Configf("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return errdefs.Configf("invalid log format: %s (must be 'json' or 'console')", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return errdefs.Configf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return errdefs.Configf("storage.sqlite_path is required")
	}

	// Validate solver config
	if c.Solver.AVLPath == "" {
		return errdefs.Configf("solver.avl_path is required")
	}
	if c.Solver.TimeoutSeconds <= 0 {
		return errdefs.Configf("invalid solver.timeout_seconds: %d (must be > 0)", c.Solver.TimeoutSeconds)
	}
	if c.Solver.MaxRetries < 0 {
		return errdefs.Configf("invalid solver.max_retries: %d (must be >= 0)", c.Solver.MaxRetries)
	}
	if c.Solver.CoefficientCacheSize < 0 {
		return errdefs.Configf("invalid solver.coefficient_cache_size: %d (must be >= 0)", c.Solver.CoefficientCacheSize)
	}
	if c.Solver.WorkDir != "" {
		if info, err := os.Stat(c.Solver.WorkDir); err != nil || !info.IsDir() {
			return errdefs.Configf("solver.work_dir does not exist or is not a directory: %s", c.Solver.WorkDir)
		}
	}

	// Validate mission config
	if c.Mission.Parallelism < 0 {
		return errdefs.Configf("invalid mission.parallelism: %d (must be >= 0)", c.Mission.Parallelism)
	}
	if c.Mission.DefaultProfile != "" {
		if _, err := os.Stat(c.Mission.DefaultProfile); err != nil {
			return errdefs.Configf("mission.default_profile not readable: %s", c.Mission.DefaultProfile)
		}
	}

	return nil
}

// AVL maps the solver section onto the bridge configuration
func (c *Config) AVL() avl.Config {
	return avl.Config{
		Executable: c.Solver.AVLPath,
		WorkRoot:   c.Solver.WorkDir,
		Timeout:    time.Duration(c.Solver.TimeoutSeconds) * time.Second,
		MaxRetries: c.Solver.MaxRetries,
		KeepFiles:  c.Solver.KeepFiles,
	}
}

// Logger maps the logging section onto the logger configuration
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// ServerTimeouts returns the read, write and idle timeouts
func (c *Config) ServerTimeouts() (read, write, idle time.Duration) {
	return time.Duration(c.Server.ReadTimeoutSecs) * time.Second,
		time.Duration(c.Server.WriteTimeoutSecs) * time.Second,
		time.Duration(c.Server.IdleTimeoutSecs) * time.Second
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

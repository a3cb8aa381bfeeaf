package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vjranagit/groundmotion/pkg/integrator"
	"github.com/vjranagit/groundmotion/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Motion  MotionConfig  `yaml:"motion"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr string        `yaml:"listen_addr"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Path             string `yaml:"path"`
	CompressionLevel int    `yaml:"compression_level"`
	CacheCapacity    int    `yaml:"cache_capacity"`
}

// MotionConfig holds defaults for records built from raw samples
type MotionConfig struct {
	Integrator      string  `yaml:"integrator"`
	IntegrationStep float64 `yaml:"integration_step"`
	ScaleFactor     float64 `yaml:"scale_factor"`
	StepIncrement   float64 `yaml:"step_increment"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":9090"),
			Timeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Path:             getEnv("STORAGE_PATH", "./data"),
			CompressionLevel: getEnvInt("COMPRESSION_LEVEL", 3),
			CacheCapacity:    getEnvInt("CACHE_CAPACITY", 64),
		},
		Motion: MotionConfig{
			Integrator:      getEnv("INTEGRATOR", integrator.NameTrapezoidal),
			IntegrationStep: getEnvFloat("INTEGRATION_STEP", 0),
			ScaleFactor:     getEnvFloat("SCALE_FACTOR", 1.0),
			StepIncrement:   getEnvFloat("STEP_INCREMENT", 0.01),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Load returns the default configuration overlaid with the YAML file at
// path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig(logger *slog.Logger) *storage.Config {
	return &storage.Config{
		Path:             c.Storage.Path,
		CompressionLevel: c.Storage.CompressionLevel,
		Logger:           logger,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Storage.CacheCapacity < 1 {
		return fmt.Errorf("cache capacity must be at least 1")
	}

	if _, err := integrator.New(c.Motion.Integrator); err != nil {
		return err
	}

	if c.Motion.IntegrationStep < 0 {
		return fmt.Errorf("integration step must not be negative")
	}

	if c.Motion.StepIncrement <= 0 {
		return fmt.Errorf("step increment must be positive")
	}

	if _, err := c.Log.level(); err != nil {
		return err
	}

	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log format must be text or json")
	}

	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

// NewLogger builds the logger described by the configuration
func (c *Config) NewLogger() *slog.Logger {
	level, err := c.Log.level()
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatVal float64
		if _, err := fmt.Sscanf(value, "%g", &floatVal); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the archiver
type Config struct {
	// Gallery output settings
	Gallery GalleryConfig `yaml:"gallery" json:"gallery"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limiting for page fetches
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GalleryConfig holds gallery layout configuration
type GalleryConfig struct {
	// Root is the gallery directory; images live under Root/images and the
	// serialized store at Root/metadata.json
	Root string `yaml:"root" json:"root"`
	// AuthFile is the key=value credentials file consumed by the fetcher
	AuthFile string `yaml:"auth_file" json:"auth_file"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
}

// RateLimitConfig holds rate limiting configuration for listing requests
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gallery: GalleryConfig{
			Root:     "gallery",
			AuthFile: "auth.txt",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 8,
			DownloadTimeout:     30 * time.Second,
			RetryAttempts:       3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then config file,
// then environment variables, then command line flags.
func Load(path string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	// Load .env file if present (ignored when missing)
	_ = godotenv.Load()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	cfg.applyFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".imgarc.yaml",
		".imgarc.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "imgarc", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "imgarc", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".imgarc.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if root := os.Getenv("IMGARC_GALLERY_ROOT"); root != "" {
		c.Gallery.Root = root
	}
	if authFile := os.Getenv("IMGARC_AUTH_FILE"); authFile != "" {
		c.Gallery.AuthFile = authFile
	}
	if concurrent := os.Getenv("IMGARC_CONCURRENT_DOWNLOADS"); concurrent != "" {
		if val, err := strconv.Atoi(concurrent); err == nil && val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}
	if rpm := os.Getenv("IMGARC_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if timeout := os.Getenv("IMGARC_DOWNLOAD_TIMEOUT"); timeout != "" {
		if val, err := time.ParseDuration(timeout); err == nil && val > 0 {
			c.Download.DownloadTimeout = val
		}
	}
	if logLevel := os.Getenv("IMGARC_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IMGARC_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	return nil
}

// applyFlags overrides configuration with command line flag values
func (c *Config) applyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "gallery":
			if v, ok := value.(string); ok && v != "" {
				c.Gallery.Root = v
			}
		case "auth-file":
			if v, ok := value.(string); ok && v != "" {
				c.Gallery.AuthFile = v
			}
		case "concurrent":
			if v, ok := value.(int); ok && v > 0 {
				c.Download.ConcurrentDownloads = v
			}
		case "rate-limit":
			if v, ok := value.(int); ok && v > 0 {
				c.RateLimit.RequestsPerMinute = v
			}
		case "download-timeout":
			if v, ok := value.(int); ok && v > 0 {
				c.Download.DownloadTimeout = time.Duration(v) * time.Second
			}
		case "retry-attempts":
			if v, ok := value.(int); ok && v >= 0 {
				c.Download.RetryAttempts = v
			}
		case "log-level":
			if v, ok := value.(string); ok && v != "" {
				c.Logging.Level = v
			}
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Gallery.Root == "" {
		errs = append(errs, errors.New("gallery root must not be empty"))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry attempts must not be negative"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		errs = append(errs, fmt.Errorf("unknown log level: %s", c.Logging.Level))
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ImagesDir returns the directory image files are written to
func (c *Config) ImagesDir() string {
	return filepath.Join(c.Gallery.Root, "images")
}

// MetadataPath returns the path of the serialized metadata store
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Gallery.Root, "metadata.json")
}

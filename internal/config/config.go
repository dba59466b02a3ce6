package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Generation GenerationConfig `json:"generation"`
	Uploads    UploadsConfig    `json:"uploads"`
	Inbox      InboxConfig      `json:"inbox"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig controls the local HTTP server
type ServerConfig struct {
	Port        int    `json:"port"`
	BindAddress string `json:"bind_address"`
}

// StorageConfig controls the device-local key/value database
type StorageConfig struct {
	Path    string `json:"path"`
	QuotaMB int    `json:"quota_mb"` // 0 disables the quota
}

// GenerationConfig points at the hosted generation service
type GenerationConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIVersion string `json:"api_version"`
}

// UploadsConfig bounds accepted uploads
type UploadsConfig struct {
	MaxFileSizeMB int `json:"max_file_size_mb"`
}

// InboxConfig controls the drop-folder watcher
type InboxConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level        string `json:"level"`         // "debug", "info", "warn", "error"
	DebugEnabled bool   `json:"debug_enabled"` // also write every line to File
	File         string `json:"file"`
	MaxSizeMB    int    `json:"max_size_mb"`
	MaxBackups   int    `json:"max_backups"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			BindAddress: "127.0.0.1",
		},
		Storage: StorageConfig{
			Path:    "zproposal.db",
			QuotaMB: 100,
		},
		Generation: GenerationConfig{
			BaseURL:    "https://api.anthropic.com",
			Model:      "claude-3-5-sonnet-20241022",
			APIVersion: "2023-06-01",
		},
		Uploads: UploadsConfig{
			MaxFileSizeMB: 50,
		},
		Inbox: InboxConfig{
			Enabled: false,
			Path:    "inbox",
		},
		Logging: LoggingConfig{
			Level:        "info",
			DebugEnabled: false,
			File:         "zproposal.log",
			MaxSizeMB:    10,
			MaxBackups:   3,
		},
	}
}

// Load reads configuration from path, then .env and ZPROPOSAL_* variables.
// A missing file is created with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unmarshalling over the defaults keeps any field the file leaves out.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.applyDefaults()
	case errors.Is(err, fs.ErrNotExist):
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// QuotaBytes returns the storage quota in bytes.
func (c *Config) QuotaBytes() int64 {
	return int64(c.Storage.QuotaMB) * 1024 * 1024
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Uploads.MaxFileSizeMB) * 1024 * 1024
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.BindAddress == "" {
		c.Server.BindAddress = def.Server.BindAddress
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = def.Generation.BaseURL
	}
	if c.Generation.Model == "" {
		c.Generation.Model = def.Generation.Model
	}
	if c.Generation.APIVersion == "" {
		c.Generation.APIVersion = def.Generation.APIVersion
	}
	if c.Uploads.MaxFileSizeMB == 0 {
		c.Uploads.MaxFileSizeMB = def.Uploads.MaxFileSizeMB
	}
	if c.Inbox.Path == "" {
		c.Inbox.Path = def.Inbox.Path
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.File == "" {
		c.Logging.File = def.Logging.File
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = def.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = def.Logging.MaxBackups
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ZPROPOSAL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ZPROPOSAL_SERVER_BIND_ADDRESS"); v != "" {
		c.Server.BindAddress = v
	}
	if v := os.Getenv("ZPROPOSAL_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("ZPROPOSAL_STORAGE_QUOTA_MB"); v != "" {
		if mb, err := strconv.Atoi(v); err == nil {
			c.Storage.QuotaMB = mb
		}
	}
	if v := os.Getenv("ZPROPOSAL_GENERATION_BASE_URL"); v != "" {
		c.Generation.BaseURL = v
	}
	if v := os.Getenv("ZPROPOSAL_GENERATION_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("ZPROPOSAL_INBOX_ENABLED"); v != "" {
		c.Inbox.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ZPROPOSAL_INBOX_PATH"); v != "" {
		c.Inbox.Path = v
	}
	if v := os.Getenv("ZPROPOSAL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ZPROPOSAL_DEBUG_ENABLED"); v != "" {
		c.Logging.DebugEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ZPROPOSAL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.QuotaMB < 0 {
		return fmt.Errorf("storage quota must not be negative: %d", c.Storage.QuotaMB)
	}
	if c.Uploads.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max upload size must be positive: %d", c.Uploads.MaxFileSizeMB)
	}
	u, err := url.Parse(c.Generation.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid generation base_url: %q", c.Generation.BaseURL)
	}
	if strings.TrimSpace(c.Generation.Model) == "" {
		return fmt.Errorf("generation model is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "alphaaudio"

// ErrMissingAPIKey is returned by RequireAPIKey when no key was configured.
var ErrMissingAPIKey = errors.New("gemini api key not configured")

type Config struct {
	AI      AIConfig      `yaml:"ai"`
	Paths   PathsConfig   `yaml:"paths"`
	Server  ServerConfig  `yaml:"server"`
	Limits  Limits        `yaml:"limits"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`

	// Source is the file the config was read from, empty when defaults were used.
	Source string `yaml:"-"`
}

type AIConfig struct {
	APIKey       string        `yaml:"api_key" validate:"omitempty,min=20"`
	Models       []string      `yaml:"models" validate:"omitempty,dive,required"`
	ModelsFile   string        `yaml:"models_file"`
	Timeout      time.Duration `yaml:"timeout" validate:"min=1s,max=1h"`
	SelectionTTL time.Duration `yaml:"selection_ttl" validate:"min=0,max=24h"`
}

type PathsConfig struct {
	DataDir     string `yaml:"data_dir" validate:"required"`
	PromptsFile string `yaml:"prompts_file"`
	PromptsDir  string `yaml:"prompts_dir"`
	ExportDir   string `yaml:"export_dir" validate:"required"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required,hostname_port"`
	SessionTTL     time.Duration `yaml:"session_ttl" validate:"min=1m,max=168h"`
	MaxSessions    int           `yaml:"max_sessions" validate:"min=1,max=1000000"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type ExportConfig struct {
	Backend string   `yaml:"backend" validate:"oneof=filesystem s3 none"`
	Naming  string   `yaml:"naming" validate:"oneof=timestamp session descriptive"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0,max=10000"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0,max=1000"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0,max=3650"`
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file is not an error: defaults are used instead.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = getConfigPath()
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		cfg.Source = path
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// RequireAPIKey fails when no Gemini key is available.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.AI.APIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or ai.api_key", ErrMissingAPIKey)
	}
	return nil
}

func (c *Config) applyEnv() {
	if c.AI.APIKey == "" || c.AI.APIKey == "${GEMINI_API_KEY}" {
		c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		if c.AI.APIKey == "" {
			c.AI.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}
	if addr := os.Getenv("ALPHAAUDIO_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("ALPHAAUDIO_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

func getConfigPath() string {
	// 1. Explicit config path via environment variable
	if path := os.Getenv("ALPHAAUDIO_CONFIG"); path != "" {
		return path
	}

	// 2. Command line flag takes precedence (handled in main)

	// 3. XDG_CONFIG_HOME (XDG Base Directory Specification)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}

	// 4. Default to ~/.config/alphaaudio/config.yaml (XDG fallback)
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func dataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func orDefault(path, def string) string {
	if path == "" {
		return def
	}
	return expandTilde(path)
}

func (c *Config) setDefaults() {
	base := dataHome()

	// Catalog, prompt and model files default to the data directory.
	c.Paths.DataDir = orDefault(c.Paths.DataDir, filepath.Join(base, "data"))
	c.Paths.PromptsFile = orDefault(c.Paths.PromptsFile, filepath.Join(c.Paths.DataDir, "prompts.yaml"))
	c.Paths.PromptsDir = orDefault(c.Paths.PromptsDir, filepath.Join(base, "prompts"))
	c.Paths.ExportDir = orDefault(c.Paths.ExportDir, filepath.Join(base, "exports"))
	c.AI.ModelsFile = orDefault(c.AI.ModelsFile, filepath.Join(c.Paths.DataDir, "models.json"))

	if c.AI.Timeout == 0 {
		c.AI.Timeout = 90 * time.Second
	}

	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8501"
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 2 * time.Hour
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = 1024
	}

	if c.Limits.RateLimit.RequestsPerMinute == 0 {
		c.Limits = DefaultLimits()
	}

	if c.Export.Backend == "" {
		c.Export.Backend = "filesystem"
	}
	if c.Export.Naming == "" {
		c.Export.Naming = "timestamp"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.File != "" {
		c.Logging.File = expandTilde(c.Logging.File)
		if c.Logging.MaxSizeMB == 0 {
			c.Logging.MaxSizeMB = 50
		}
		if c.Logging.MaxBackups == 0 {
			c.Logging.MaxBackups = 3
		}
		if c.Logging.MaxAgeDays == 0 {
			c.Logging.MaxAgeDays = 28
		}
	}
}

func (c *Config) validate() error {
	// Set XDG-compliant defaults before validation
	c.setDefaults()

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Export.Backend == "s3" {
		if c.Export.S3.Endpoint == "" || c.Export.S3.Bucket == "" {
			return fmt.Errorf("config validation failed: export.s3 endpoint and bucket are required for the s3 backend")
		}
	}

	return nil
}

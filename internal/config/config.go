package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

// Duration decodes yaml values like "5s" or "2m" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Port int `yaml:"port"`
}

type AdminConfig struct {
	Port int `yaml:"port"` // metrics listener
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorageConfig struct {
	DownloadsDir string `yaml:"downloads_dir"`
	CookiesDir   string `yaml:"cookies_dir"`
}

type DownloaderConfig struct {
	Binary           string   `yaml:"binary"`
	ExtraArgs        []string `yaml:"extra_args"`
	MaxConcurrent    int      `yaml:"max_concurrent"`
	MaxAttempts      int      `yaml:"max_attempts"`
	RetryDelay       Duration `yaml:"retry_delay"`
	GracePeriod      Duration `yaml:"grace_period"` // terminate-to-kill bound
	PreflightTimeout Duration `yaml:"preflight_timeout"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Admin      AdminConfig      `yaml:"admin"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Downloader DownloaderConfig `yaml:"downloader"`
	Security   SecurityConfig   `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Storage.DownloadsDir == "" {
		return nil, errors.New("storage.downloads_dir is required")
	}
	if cfg.Storage.CookiesDir == "" {
		return nil, errors.New("storage.cookies_dir is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Downloader.Binary == "" {
		cfg.Downloader.Binary = "gallery-dl"
	}
	if cfg.Downloader.MaxConcurrent <= 0 {
		cfg.Downloader.MaxConcurrent = 4
	}
	if cfg.Downloader.MaxAttempts <= 0 {
		cfg.Downloader.MaxAttempts = 3
	}
	if cfg.Downloader.RetryDelay <= 0 {
		cfg.Downloader.RetryDelay = Duration(5 * time.Second)
	}
	if cfg.Downloader.GracePeriod <= 0 {
		cfg.Downloader.GracePeriod = Duration(5 * time.Second)
	}
	if cfg.Downloader.PreflightTimeout <= 0 {
		cfg.Downloader.PreflightTimeout = Duration(5 * time.Second)
	}
}

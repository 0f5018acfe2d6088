// Package config loads busstats configuration.
//
// Configuration comes from a YAML file, defaults fill every field the file
// leaves empty, and a few environment variables (optionally read from a
// .env file) override the result:
//
//	BUSSTATS_SECRET       shared token secret
//	BUSSTATS_ENVIRONMENT  collector | storage
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/busstats/internal/scraper"
)

// FileName is the configuration file looked up when no path is given.
const FileName = "busstats.yml"

const (
	envSecret      = "BUSSTATS_SECRET"
	envEnvironment = "BUSSTATS_ENVIRONMENT"
)

// Environment is the role of the node running the command.
type Environment string

const (
	// Collector scrapes stop pages and serves the staging file.
	Collector Environment = "collector"
	// Storage fetches the staging file and owns the durable store.
	Storage Environment = "storage"
)

// Config is the full configuration.
type Config struct {
	Environment Environment        `yaml:"environment" validate:"required,oneof=collector storage"`
	Secret      string             `yaml:"secret"`
	Paths       PathsConfig        `yaml:"paths"`
	Server      ServerConfig       `yaml:"server"`
	Downloader  DownloaderConfig   `yaml:"downloader"`
	Scraper     ScraperConfig      `yaml:"scraper"`
	Alerts      AlertsConfig       `yaml:"alerts"`
	Warnings    map[string]Warning `yaml:"warnings" validate:"dive"`
}

// PathsConfig locates files. Empty paths are resolved per environment by
// the platform package.
type PathsConfig struct {
	Staging  string `yaml:"staging"`
	Database string `yaml:"database"`
	LogFile  string `yaml:"log_file"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen" validate:"required,hostname_port"`
	MetricsListen string `yaml:"metrics_listen" validate:"omitempty,hostname_port"`
	// URL is where the storage node reaches the collector.
	URL string `yaml:"url" validate:"required,url"`
}

type DownloaderConfig struct {
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	Retries       int           `yaml:"retries" validate:"gte=1"`
	RetryInterval time.Duration `yaml:"retry_interval" validate:"gte=0"`
}

type ScraperConfig struct {
	BaseURL  string         `yaml:"base_url" validate:"required,url"`
	Schedule string         `yaml:"schedule"`
	Stops    []scraper.Stop `yaml:"stops" validate:"dive"`
}

type AlertsConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
	To   []string   `yaml:"to" validate:"dive,email"`
}

// SMTPConfig is optional; without a server alerts are only logged.
type SMTPConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port" validate:"omitempty,gt=0,lte=65535"`
	From     string `yaml:"from" validate:"omitempty,email"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Warning is a named arrival check sent by "busstats warn".
type Warning struct {
	Stop       int      `yaml:"stop" validate:"required,gt=0"`
	Lines      []string `yaml:"lines"`
	Recipients []string `yaml:"recipients" validate:"dive,email"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: defaultEnvironment(),
		Server: ServerConfig{
			Listen: "0.0.0.0:5415",
			URL:    "http://localhost:5415/",
		},
		Downloader: DownloaderConfig{
			Timeout:       30 * time.Second,
			Retries:       10,
			RetryInterval: 2 * time.Second,
		},
		Scraper: ScraperConfig{
			BaseURL:  scraper.DefaultBaseURL,
			Schedule: "* * * * *",
			Stops:    scraper.DefaultStops,
		},
		Alerts: AlertsConfig{
			SMTP: SMTPConfig{Port: 587},
		},
		Warnings: map[string]Warning{
			"GAMAZO":  {Stop: 686, Lines: []string{"2"}},
			"CLINICO": {Stop: 833, Lines: []string{"2", "8"}},
		},
	}
}

// The collector historically ran on a Linux single-board computer and the
// storage node elsewhere.
func defaultEnvironment() Environment {
	if runtime.GOOS == "linux" {
		return Collector
	}
	return Storage
}

// Load reads the configuration at path, or searches the default locations
// when path is empty. It returns the file actually used ("" when only
// defaults apply).
func Load(path string) (Config, string, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	used, data, err := read(path)
	if err != nil {
		return Config{}, "", err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("parse %s: %w", used, err)
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, "", fmt.Errorf("apply defaults: %w", err)
	}

	if v := os.Getenv(envSecret); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv(envEnvironment); v != "" {
		cfg.Environment = Environment(strings.ToLower(strings.TrimSpace(v)))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, used, nil
}

// read returns the first existing configuration file. An explicit path must
// exist.
func read(path string) (string, []byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read config: %w", err)
		}
		return path, data, nil
	}

	for _, candidate := range searchPaths() {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("read config: %w", err)
		}
		return candidate, data, nil
	}
	return "", nil, nil
}

func searchPaths() []string {
	paths := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "busstats", FileName))
	}
	return paths
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireSecret fails when no token secret is configured.
func (c Config) RequireSecret() (string, error) {
	if c.Secret == "" {
		return "", fmt.Errorf("no token secret configured: set %s or secret in %s", envSecret, FileName)
	}
	return c.Secret, nil
}

// Warning looks up a named warning, ignoring case.
func (c Config) Warning(name string) (Warning, bool) {
	for k, w := range c.Warnings {
		if strings.EqualFold(k, name) {
			return w, true
		}
	}
	return Warning{}, false
}

// WarningNames lists the configured warning names, sorted.
func (c Config) WarningNames() []string {
	return slices.Sorted(maps.Keys(c.Warnings))
}

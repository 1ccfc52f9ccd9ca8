package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/cgpvp/cgpvp/internal/types"
)

const appName = "cgpvp"

// DefaultUserAgent is the desktop Chrome identity used by both the headless
// browser and the image downloader.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Scraping ScrapingConfig `toml:"scraping"`
	Schedule ScheduleConfig `toml:"schedule"`
	Images   ImagesConfig   `toml:"images"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver  string `toml:"driver"`
	DSN     string `toml:"dsn"`
	Migrate bool   `toml:"migrate"`
}

type ScrapingConfig struct {
	Headless     bool           `toml:"headless"`
	UserAgent    string         `toml:"user_agent"`
	PageSettle   time.Duration  `toml:"page_settle"`
	ExpandSettle time.Duration  `toml:"expand_settle"`
	RunTimeout   time.Duration  `toml:"run_timeout"`
	CacheRuns    bool           `toml:"cache_runs"`
	Sources      []types.Source `toml:"sources"`
}

type ScheduleConfig struct {
	Enabled bool `toml:"enabled"`
	// Cron is a standard 5-field expression, "0 1 * * *" is daily at 01:00
	Cron         string        `toml:"cron"`
	Timezone     string        `toml:"timezone"`
	PollInterval time.Duration `toml:"poll_interval"`
	SkipInterval time.Duration `toml:"skip_interval"`
}

type ImagesConfig struct {
	Timeout  time.Duration `toml:"timeout"`
	MaxBytes int64         `toml:"max_bytes"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			DSN:     "cgpvp.db",
			Migrate: true,
		},
		Scraping: ScrapingConfig{
			Headless:     true,
			UserAgent:    DefaultUserAgent,
			PageSettle:   10 * time.Second,
			ExpandSettle: 3 * time.Second,
			RunTimeout:   10 * time.Minute,
			Sources: []types.Source{
				{
					Name:      "paramedicos",
					URL:       "https://www.facebook.com/paramedicos.pe",
					ImageMode: types.ImageModeBytes,
				},
			},
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			Cron:         "0 1 * * *",
			Timezone:     "Local",
			PollInterval: 30 * time.Second,
			SkipInterval: 61 * time.Second,
		},
		Images: ImagesConfig{
			Timeout:  15 * time.Second,
			MaxBytes: 10 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the values that would otherwise only fail at run time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if len(c.Scraping.Sources) == 0 {
		return fmt.Errorf("no scraping sources configured")
	}
	seen := make(map[string]bool)
	for i, src := range c.Scraping.Sources {
		if src.Name == "" || src.URL == "" {
			return fmt.Errorf("source %d: name and url are required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
		if !src.ImageMode.Valid() {
			return fmt.Errorf("source %s: invalid image_mode %q", src.Name, src.ImageMode)
		}
	}

	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule.Cron, err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %s: %w", c.Schedule.Timezone, err)
	}
	if c.Schedule.PollInterval <= 0 {
		return fmt.Errorf("schedule poll_interval must be positive")
	}
	if c.Schedule.SkipInterval < time.Minute {
		return fmt.Errorf("schedule skip_interval must span the trigger minute (>= 1m)")
	}

	return nil
}

// Source returns the configured source with the given name.
func (c *Config) Source(name string) (types.Source, bool) {
	for _, src := range c.Scraping.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return types.Source{}, false
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ConfigPath returns the full path to the config file. CGPVP_CONFIG wins
// over the platform default.
func ConfigPath() (string, error) {
	if p := os.Getenv("CGPVP_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from disk and applies environment overrides
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path. Keys missing from the file keep their
// default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory if present.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("CGPVP_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("CGPVP_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CGPVP_SCHEDULE"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("CGPVP_TIMEZONE"); v != "" {
		c.Schedule.Timezone = v
	}
	if v := os.Getenv("CGPVP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CGPVP_HEADLESS"); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CGPVP_HEADLESS: %w", err)
		}
		c.Scraping.Headless = headless
	}
	return nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating parent directories.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

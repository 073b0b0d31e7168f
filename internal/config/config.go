package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	Browser  BrowserConfig  `toml:"browser"`
	Scraping ScrapingConfig `toml:"scraping"`
	Blocker  BlockerConfig  `toml:"blocker"`
	Jobs     JobsConfig     `toml:"jobs"`
	Report   ReportConfig   `toml:"report"`
	Files    FilesConfig    `toml:"files"`
}

type ServerConfig struct {
	ListenAddress string `toml:"listen_address"`
	// Profiling mounts the pprof handlers under /debug/pprof
	Profiling bool `toml:"profiling"`
}

type BrowserConfig struct {
	Headless bool `toml:"headless"`
	// ChromeMajor pins the user agent to a browser major version; 0 follows the running browser
	ChromeMajor       int    `toml:"chrome_major"`
	ScraperProfileDir string `toml:"scraper_profile_dir"`
	BlockerProfileDir string `toml:"blocker_profile_dir"`
}

type ScrapingConfig struct {
	UTCOffsetHours int `toml:"utc_offset_hours"`
}

type BlockerConfig struct {
	MinDelaySeconds float64 `toml:"min_delay_seconds"`
	MaxDelaySeconds float64 `toml:"max_delay_seconds"`
}

type JobsConfig struct {
	RetentionHours int `toml:"retention_hours"`
	QueueSize      int `toml:"queue_size"`
}

type ReportConfig struct {
	ServiceURL  string `toml:"service_url"`
	ProgressDir string `toml:"progress_dir"`
}

type FilesConfig struct {
	Credentials string `toml:"credentials"`
	Cookies     string `toml:"cookies"`
	Database    string `toml:"database"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			ListenAddress: ":5000",
		},
		Browser: BrowserConfig{
			Headless:          false,
			ScraperProfileDir: "chrome_profile",
			BlockerProfileDir: "chrome_profile_blocker",
		},
		Scraping: ScrapingConfig{
			UTCOffsetHours: 3,
		},
		Blocker: BlockerConfig{
			MinDelaySeconds: 2.0,
			MaxDelaySeconds: 5.0,
		},
		Jobs: JobsConfig{
			RetentionHours: 24,
			QueueSize:      64,
		},
		Report: ReportConfig{
			ServiceURL:  "http://localhost:3000",
			ProgressDir: "temp",
		},
		Files: FilesConfig{
			Credentials: "config.json",
			Cookies:     "twitter_cookies.json",
			Database:    "history.db",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	if dir := os.Getenv("XHARVEST_HOME"); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xharvest"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
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

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadOrCreate loads the config, writing defaults on first run
func LoadOrCreate() *Config {
	cfg, err := Load()
	if err == nil {
		return cfg
	}

	cfg = Default()
	if os.IsNotExist(err) {
		if err := cfg.Save(); err != nil {
			logrus.Warnf("Could not save default config: %v", err)
		} else {
			path, _ := ConfigPath()
			logrus.Infof("Created default config at: %s", path)
		}
	} else {
		logrus.Warnf("Could not load config: %v (using defaults)", err)
	}
	cfg.applyEnv()
	return cfg
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
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

// applyEnv reads <config dir>/.env and lets XHARVEST_* variables override the file
func (c *Config) applyEnv() {
	if dir, err := ConfigDir(); err == nil {
		if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("Failed reading env file: %v", err)
		}
	}

	if v := os.Getenv("XHARVEST_LISTEN_ADDRESS"); v != "" {
		c.Server.ListenAddress = v
	}
	if v := os.Getenv("XHARVEST_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		} else {
			logrus.Warnf("Ignoring XHARVEST_HEADLESS=%q: %v", v, err)
		}
	}
	if v := os.Getenv("XHARVEST_PROFILING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Server.Profiling = b
		} else {
			logrus.Warnf("Ignoring XHARVEST_PROFILING=%q: %v", v, err)
		}
	}
	if v := os.Getenv("XHARVEST_REPORT_URL"); v != "" {
		c.Report.ServiceURL = v
	}
}

// Resolve makes a configured path absolute relative to the config dir
func Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	dir, err := ConfigDir()
	if err != nil {
		return path
	}
	return filepath.Join(dir, path)
}

// Location is the fixed zone feed timestamps are normalized to
func (c *Config) Location() *time.Location {
	hours := c.Scraping.UTCOffsetHours
	return time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600)
}

// Retention is how long finished jobs stay visible
func (c *Config) Retention() time.Duration {
	if c.Jobs.RetentionHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Jobs.RetentionHours) * time.Hour
}

// BlockDelay returns the throttle range between two block actions
func (c *Config) BlockDelay() (time.Duration, time.Duration) {
	lo := time.Duration(c.Blocker.MinDelaySeconds * float64(time.Second))
	hi := time.Duration(c.Blocker.MaxDelaySeconds * float64(time.Second))
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

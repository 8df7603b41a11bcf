package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "MEDIAMIRROR_"

// Config holds all configuration options for mediamirror
type Config struct {
	// Site endpoints
	Site SiteConfig `yaml:"site" json:"site"`

	// Authenticated session
	Session SessionConfig `yaml:"session" json:"session"`

	// Retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Request and bandwidth pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Local library layout
	Library LibraryConfig `yaml:"library" json:"library"`

	// Progress line
	Progress ProgressConfig `yaml:"progress" json:"progress"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds the site URLs
type SiteConfig struct {
	MembersURL string `yaml:"members_url" json:"members_url"`
	LoginURL   string `yaml:"login_url" json:"login_url"`
	VideosURL  string `yaml:"videos_url" json:"videos_url"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// EffectiveLoginURL returns the login URL, falling back to the members URL.
func (s SiteConfig) EffectiveLoginURL() string {
	if s.LoginURL != "" {
		return s.LoginURL
	}
	return s.MembersURL
}

// SessionConfig holds credentials and session persistence settings
type SessionConfig struct {
	Username  string        `yaml:"username" json:"username"`
	Password  string        `yaml:"password" json:"-"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	StatePath Path          `yaml:"state_path" json:"state_path"`
}

// RetryConfig holds attempt counts and the backoff cap
type RetryConfig struct {
	GetAttempts      int           `yaml:"get_attempts" json:"get_attempts"`
	DownloadAttempts int           `yaml:"download_attempts" json:"download_attempts"`
	MaxBackoff       time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

// RateLimitConfig holds rate limiting configuration. Zero disables a limit.
type RateLimitConfig struct {
	RequestsPerMinute int   `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxBytesPerSecond int64 `yaml:"max_bytes_per_second" json:"max_bytes_per_second"`
}

// LibraryConfig holds the local library layout
type LibraryConfig struct {
	DownloadRoot     Path   `yaml:"download_root" json:"download_root"`
	DownloadInPlace  bool   `yaml:"download_in_place" json:"download_in_place"`
	SaveItemPage     bool   `yaml:"save_item_page" json:"save_item_page"`
	ItemPageFilename string `yaml:"item_page_filename" json:"item_page_filename"`
	SaveDetails      bool   `yaml:"save_details" json:"save_details"`
	DetailsFilename  string `yaml:"details_filename" json:"details_filename"`
	Filter           string `yaml:"filter" json:"filter"`
}

// ProgressConfig controls the progress line
type ProgressConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
	NoColor    bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Session: SessionConfig{
			Timeout:   10 * time.Second,
			StatePath: NewPath("~/.local/share/mediamirror/session.json"),
		},
		Retry: RetryConfig{
			GetAttempts:      10,
			DownloadAttempts: 20,
			MaxBackoff:       60 * time.Second,
		},
		Library: LibraryConfig{
			DownloadRoot:     NewPath("~/mediamirror"),
			SaveItemPage:     true,
			ItemPageFilename: "video_page.html",
			SaveDetails:      true,
			DetailsFilename:  "details.json",
		},
		Progress: ProgressConfig{
			Enabled:  true,
			Interval: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 7,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	setPath := func(name string, dst *Path) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = NewPath(v)
		}
	}

	setString("USERNAME", &c.Session.Username)
	setString("PASSWORD", &c.Session.Password)
	setString("MEMBERS_URL", &c.Site.MembersURL)
	setString("LOGIN_URL", &c.Site.LoginURL)
	setString("VIDEOS_URL", &c.Site.VideosURL)
	setString("USER_AGENT", &c.Site.UserAgent)
	setPath("DOWNLOAD_ROOT", &c.Library.DownloadRoot)
	setPath("STATE_PATH", &c.Session.StatePath)
	setInt("GET_ATTEMPTS", &c.Retry.GetAttempts)
	setInt("DOWNLOAD_ATTEMPTS", &c.Retry.DownloadAttempts)
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(EnvPrefix + "PROGRESS"); v != "" {
		c.Progress.Enabled = strings.EqualFold(v, "true")
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
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

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".mediamirror.yaml",
		".mediamirror.yml",
		filepath.Join(home, ".config", "mediamirror", "config.yaml"),
		filepath.Join(home, ".config", "mediamirror", "config.yml"),
		filepath.Join(home, ".mediamirror.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mediamirror", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := validateURL("site.members_url", c.Site.MembersURL, true); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("site.videos_url", c.Site.VideosURL, true); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("site.login_url", c.Site.LoginURL, false); err != nil {
		errs = append(errs, err)
	}

	if c.Session.Timeout <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}
	if c.Session.StatePath.IsZero() {
		errs = append(errs, errors.New("session state path is required"))
	}

	if c.Retry.GetAttempts <= 0 {
		errs = append(errs, errors.New("get attempts must be positive"))
	}
	if c.Retry.DownloadAttempts <= 0 {
		errs = append(errs, errors.New("download attempts must be positive"))
	}
	if c.Retry.MaxBackoff <= 0 {
		errs = append(errs, errors.New("max backoff must be positive"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.MaxBytesPerSecond < 0 {
		errs = append(errs, errors.New("max bytes per second cannot be negative"))
	}

	if c.Library.DownloadRoot.IsZero() {
		errs = append(errs, errors.New("download root is required"))
	}
	if c.Library.SaveItemPage && c.Library.ItemPageFilename == "" {
		errs = append(errs, errors.New("item page filename is required when saving pages"))
	}
	if c.Library.SaveDetails && c.Library.DetailsFilename == "" {
		errs = append(errs, errors.New("details filename is required when saving details"))
	}
	if c.Library.Filter != "" {
		if _, err := expr.Compile(c.Library.Filter, expr.AllowUndefinedVariables(), expr.AsBool()); err != nil {
			errs = append(errs, fmt.Errorf("invalid library filter: %w", err))
		}
	}

	if c.Progress.Enabled && c.Progress.Interval <= 0 {
		errs = append(errs, errors.New("progress interval must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

func validateURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", name)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
	if v, ok := flags["username"].(string); ok && v != "" {
		c.Session.Username = v
	}
	if v, ok := flags["download-root"].(string); ok && v != "" {
		c.Library.DownloadRoot = NewPath(v)
	}
	if v, ok := flags["retries"].(int); ok && v > 0 {
		c.Retry.GetAttempts = v
	}
	if v, ok := flags["download-retries"].(int); ok && v > 0 {
		c.Retry.DownloadAttempts = v
	}
	if v, ok := flags["no-progress"].(bool); ok && v {
		c.Progress.Enabled = false
	}
	if v, ok := flags["filter"].(string); ok && v != "" {
		c.Library.Filter = v
	}
}

// LoadDotEnv loads .env files without overriding variables already set.
func LoadDotEnv() {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".mediamirror.env"))
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated is Load without the final Validate call.
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	LoadDotEnv()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Flickr library export.
type Config struct {
	// Flickr API credentials and account selection
	Flickr FlickrConfig `yaml:"flickr" json:"flickr"`

	// Rate limiting and retry configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Destination settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FlickrConfig holds the API credentials and the capability token obtained
// from the external OAuth flow. The flow itself is not implemented here.
type FlickrConfig struct {
	APIKey           string `yaml:"api_key" json:"api_key"`
	APISecret        string `yaml:"api_secret" json:"api_secret"`
	OAuthToken       string `yaml:"oauth_token" json:"oauth_token"`
	OAuthTokenSecret string `yaml:"oauth_token_secret" json:"oauth_token_secret"`
	UserID           string `yaml:"user_id" json:"user_id"`
}

// RateLimitConfig holds request pacing and retry configuration.
type RateLimitConfig struct {
	MinRequestInterval time.Duration `yaml:"min_request_interval" json:"min_request_interval"`
	MaxRetries         int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay      time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`

	// Burst switches pacing from the fixed inter-request interval to a
	// token bucket of Burst requests refilled every BurstWindow. Zero keeps
	// interval pacing.
	Burst       int           `yaml:"burst" json:"burst"`
	BurstWindow time.Duration `yaml:"burst_window" json:"burst_window"`
}

// OutputConfig holds the destination directory layout settings.
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// DownloadConfig holds pagination and concurrency settings.
type DownloadConfig struct {
	PageSize        int           `yaml:"page_size" json:"page_size"`
	Workers         int           `yaml:"workers" json:"workers"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`

	// IncludeDetails fetches EXIF and comments into each sidecar, costing
	// two extra API calls per item.
	IncludeDetails bool `yaml:"include_details" json:"include_details"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			MinRequestInterval: 500 * time.Millisecond,
			MaxRetries:         3,
			RetryBaseDelay:     time.Second,
			RetryMaxDelay:      time.Minute,
			BurstWindow:        time.Minute,
		},
		Output: OutputConfig{
			Directory: "./flickr-library",
		},
		Download: DownloadConfig{
			PageSize:        500,
			Workers:         4,
			DownloadTimeout: 60 * time.Second,
			IncludeDetails:  true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if key := os.Getenv("FLICKRDUMP_API_KEY"); key != "" {
		c.Flickr.APIKey = key
	}
	if secret := os.Getenv("FLICKRDUMP_API_SECRET"); secret != "" {
		c.Flickr.APISecret = secret
	}
	if token := os.Getenv("FLICKRDUMP_OAUTH_TOKEN"); token != "" {
		c.Flickr.OAuthToken = token
	}
	if tokenSecret := os.Getenv("FLICKRDUMP_OAUTH_TOKEN_SECRET"); tokenSecret != "" {
		c.Flickr.OAuthTokenSecret = tokenSecret
	}
	if userID := os.Getenv("FLICKRDUMP_USER_ID"); userID != "" {
		c.Flickr.UserID = userID
	}

	if dir := os.Getenv("FLICKRDUMP_OUTPUT_DIR"); dir != "" {
		c.Output.Directory = dir
	}

	if workers := os.Getenv("FLICKRDUMP_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Download.Workers = val
		}
	}
	if pageSize := os.Getenv("FLICKRDUMP_PAGE_SIZE"); pageSize != "" {
		var val int
		fmt.Sscanf(pageSize, "%d", &val)
		if val > 0 {
			c.Download.PageSize = val
		}
	}

	if logLevel := os.Getenv("FLICKRDUMP_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
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

// findConfigFile searches for config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".flickrdump.yaml",
		".flickrdump.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "flickrdump", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "flickrdump", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".flickrdump.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are not
// checked here: they may still arrive from the credential store after
// loading, and ValidateCredentials covers them once merged.
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MinRequestInterval < 0 {
		errs = append(errs, errors.New("minimum request interval cannot be negative"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("burst cannot be negative"))
	}
	if c.RateLimit.Burst > 0 && c.RateLimit.BurstWindow <= 0 {
		errs = append(errs, errors.New("burst window must be positive when burst pacing is enabled"))
	}

	if c.Download.PageSize <= 0 || c.Download.PageSize > 500 {
		errs = append(errs, errors.New("page size must be between 1 and 500"))
	}
	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("worker count must be positive"))
	}
	if c.Download.Workers > 16 {
		errs = append(errs, errors.New("worker count should not exceed 16"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks that the merged configuration carries a
// complete credential set.
func (c *Config) ValidateCredentials() error {
	var errs []error

	if c.Flickr.APIKey == "" {
		errs = append(errs, errors.New("Flickr API key is required"))
	}
	if c.Flickr.APISecret == "" {
		errs = append(errs, errors.New("Flickr API secret is required"))
	}
	if c.Flickr.OAuthToken == "" {
		errs = append(errs, errors.New("Flickr OAuth token is required"))
	}
	if c.Flickr.OAuthTokenSecret == "" {
		errs = append(errs, errors.New("Flickr OAuth token secret is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Output.Directory = dir
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Download.Workers = workers
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Download.PageSize = pageSize
	}
	if maxRetries, ok := flags["max-retries"].(int); ok && maxRetries >= 0 {
		c.RateLimit.MaxRetries = maxRetries
	}
	if userID, ok := flags["user"].(string); ok && userID != "" {
		c.Flickr.UserID = userID
	}
	if details, ok := flags["details"].(bool); ok {
		c.Download.IncludeDetails = details
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".flickrdump.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"elevator-status-monitor/internal/model"
	"elevator-status-monitor/internal/similarity"
)

// Defaults for the accessibility.cloud equipment API.
const (
	DefaultAPIURL         = "https://accessibility-cloud.freetls.fastly.net/equipment-infos.json"
	DefaultTokenEnv       = "WHEELMAP_TOKEN"
	DefaultAccuracyMeters = 500
	DefaultTimeoutSeconds = 30
)

// Config represents the overall application configuration.
type Config struct {
	Log        LogConfig           `yaml:"log"`
	API        APIConfig           `yaml:"api"`
	Matcher    MatcherConfig       `yaml:"matcher"`
	Stations   []model.SearchGroup `yaml:"stations"`
	Scraper    ScraperConfig       `yaml:"scraper"`
	Server     ServerConfig        `yaml:"server"`
	Email      EmailConfig         `yaml:"email"`
	Display    DisplayConfig       `yaml:"display"`
	Push       PushConfig          `yaml:"push"`
	Database   DatabaseConfig      `yaml:"database"`
	WorkerPool WorkerPoolConfig    `yaml:"worker_pool"`

	warnings []string
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig describes how the equipment API is queried.
type APIConfig struct {
	URL            string        `yaml:"url"`
	TokenEnv       string        `yaml:"token_env"`
	Token          string        `yaml:"-"` // Only ever read from the environment
	AccuracyMeters int           `yaml:"accuracy_meters"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	HTTPProxy      string        `yaml:"http_proxy"`
}

// MatcherConfig tunes label-to-equipment matching.
type MatcherConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ScraperConfig holds the periodic check loop configuration for serve mode.
type ScraperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// ServerConfig holds the status API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// EmailConfig configures the status and error emails.
type EmailConfig struct {
	Transport     string     `yaml:"transport"` // "smtp" or "ses"
	StatusAddress string     `yaml:"status_address"`
	ErrorsAddress string     `yaml:"errors_address"`
	From          string     `yaml:"from"`
	SMTP          SMTPConfig `yaml:"smtp"`
	SES           SESConfig  `yaml:"ses"`
}

// SMTPConfig holds SMTP relay credentials.
type SMTPConfig struct {
	Server      string `yaml:"server"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

// SESConfig selects the AWS region for SES.
type SESConfig struct {
	Region string `yaml:"region"`
}

// DisplayConfig targets an OpenEPaperLink access point.
type DisplayConfig struct {
	APAddress       string `yaml:"ap_address"`
	Tag             string `yaml:"tag"`
	OutputPath      string `yaml:"output_path"`
	MaxAttempts     int    `yaml:"max_attempts"`
	BaseDelayMillis int    `yaml:"base_delay_ms"`
	Dither          bool   `yaml:"dither"`
}

// PushConfig holds the VAPID keys and static subscriptions for web push notifications.
type PushConfig struct {
	Enabled       bool               `yaml:"enabled"`
	PublicKey     string             `yaml:"vapid_public_key"`
	PrivateKey    string             `yaml:"vapid_private_key"`
	Subject       string             `yaml:"subject"`
	TTL           int                `yaml:"ttl"`
	Subscriptions []PushSubscription `yaml:"subscriptions"`
}

// PushSubscription is a browser push endpoint with its keys.
type PushSubscription struct {
	Endpoint string `yaml:"endpoint"`
	P256DH   string `yaml:"p256dh"`
	Auth     string `yaml:"auth"`
}

// DatabaseConfig holds the SQLite settings for persisted push subscriptions.
// An empty Path keeps subscriptions in memory.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	LogLevel string `yaml:"log_level"` // silent, error, warn or info
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path, applies defaults and resolves
// secrets from the environment. A .env file in the working directory is honoured.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.URL == "" {
		c.API.URL = DefaultAPIURL
	}
	if c.API.TokenEnv == "" {
		c.API.TokenEnv = DefaultTokenEnv
	}
	if c.API.AccuracyMeters <= 0 {
		c.API.AccuracyMeters = DefaultAccuracyMeters
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	c.API.Timeout = time.Duration(c.API.TimeoutSeconds) * time.Second

	if c.Matcher.Threshold <= 0 {
		c.Matcher.Threshold = similarity.DefaultThreshold
	}

	if c.Scraper.IntervalSeconds <= 0 {
		c.Scraper.IntervalSeconds = 300
	}
	c.Scraper.Interval = time.Duration(c.Scraper.IntervalSeconds) * time.Second

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 5
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 60
	}

	if c.Email.Transport == "" {
		c.Email.Transport = "smtp"
	}
	if c.Email.SMTP.Port <= 0 {
		c.Email.SMTP.Port = 465
	}
	if c.Email.From == "" && c.Email.SMTP.User != "" {
		c.Email.From = fmt.Sprintf("ElStatus <%s>", c.Email.SMTP.User)
	}

	if c.Display.OutputPath == "" {
		c.Display.OutputPath = "elstatus.jpg"
	}
	if c.Display.MaxAttempts <= 0 {
		c.Display.MaxAttempts = 5
	}
	if c.Display.BaseDelayMillis <= 0 {
		c.Display.BaseDelayMillis = 100
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}

	if c.WorkerPool.Size <= 0 {
		c.warnings = append(c.warnings, "worker_pool.size is not set or invalid; defaulting to 1")
		c.WorkerPool.Size = 1
	}
}

func (c *Config) applyEnv() {
	c.API.Token = os.Getenv(c.API.TokenEnv)
	if c.Email.SMTP.Password == "" && c.Email.SMTP.PasswordEnv != "" {
		c.Email.SMTP.Password = os.Getenv(c.Email.SMTP.PasswordEnv)
	}
}

// Validate reports configuration problems that prevent any resolution from running.
func (c *Config) Validate() error {
	var errs []error
	if c.API.Token == "" {
		errs = append(errs, fmt.Errorf("environment variable %s is not set", c.API.TokenEnv))
	}
	if len(c.Stations) == 0 {
		errs = append(errs, errors.New("no stations configured"))
	}
	for i, station := range c.Stations {
		if len(station.EquipmentSearches) == 0 {
			errs = append(errs, fmt.Errorf("station %d (%s) has no equipment_searches", i, station.Label()))
		}
	}
	return errors.Join(errs...)
}

// Warnings lists the defaults Load applied in place of invalid values.
func (c *Config) Warnings() []string {
	return c.warnings
}

// BaseDelay returns the upload backoff base as a duration.
func (d DisplayConfig) BaseDelay() time.Duration {
	return time.Duration(d.BaseDelayMillis) * time.Millisecond
}

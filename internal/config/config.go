// Package config loads herald's YAML configuration with environment
// overrides for anything secret or deployment-specific.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure.
type Config struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	Roster   RosterConfig   `yaml:"roster"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Campaign CampaignConfig `yaml:"campaign"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	DKIM     DKIMConfig     `yaml:"dkim"`
}

// SMTPConfig contains submission relay settings. The password is only
// ever taken from the environment.
type SMTPConfig struct {
	Host        string        `yaml:"host" env:"HERALD_SMTP_HOST"`
	Port        int           `yaml:"port" env:"HERALD_SMTP_PORT"`
	Username    string        `yaml:"username" env:"HERALD_SMTP_USERNAME"`
	Password    string        `yaml:"-" env:"HERALD_SMTP_PASSWORD"`
	FromName    string        `yaml:"from_name" env:"HERALD_FROM_NAME"`
	FromAddress string        `yaml:"from_address" env:"HERALD_FROM_ADDRESS"`
	HelloName   string        `yaml:"hello_name"`
	Timeout     time.Duration `yaml:"timeout" env:"HERALD_SMTP_TIMEOUT"`
}

// RosterConfig selects where the recipient roster comes from.
type RosterConfig struct {
	SheetURL     string        `yaml:"sheet_url" env:"HERALD_SHEET_URL"`
	CSVFile      string        `yaml:"csv_file" env:"HERALD_ROSTER_FILE"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// LedgerConfig locates the delivery ledger database.
type LedgerConfig struct {
	Path string `yaml:"path" env:"HERALD_LEDGER_PATH"`
}

// CampaignConfig tunes the engine's retry and dispatch behavior.
type CampaignConfig struct {
	SubjectTemplateFile string        `yaml:"subject_template_file"`
	BodyTemplateFile    string        `yaml:"body_template_file"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
	Workers             int           `yaml:"workers"`
	SendDelay           time.Duration `yaml:"send_delay"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional, in addition to stdout
}

// MetricsConfig enables the Prometheus endpoint during a run.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// DKIMConfig enables signing of outgoing messages.
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads the config file (optional: an empty path yields defaults),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration.
func (c *Config) setDefaults() {
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Timeout == 0 {
		c.SMTP.Timeout = 30 * time.Second
	}
	if c.SMTP.HelloName == "" {
		hostname, _ := os.Hostname()
		c.SMTP.HelloName = hostname
	}

	if c.Roster.FetchTimeout == 0 {
		c.Roster.FetchTimeout = 30 * time.Second
	}

	if c.Ledger.Path == "" {
		c.Ledger.Path = "data/ledger.db"
	}

	if c.Campaign.MaxRetries == 0 {
		c.Campaign.MaxRetries = 3
	}
	if c.Campaign.RetryBackoff == 0 {
		c.Campaign.RetryBackoff = 2 * time.Second
	}
	if c.Campaign.Workers == 0 {
		c.Campaign.Workers = 1
	}
	if c.Campaign.SendDelay == 0 {
		c.Campaign.SendDelay = 2 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}

	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port %d is out of range", c.SMTP.Port)
	}
	if c.Campaign.MaxRetries < 1 {
		return fmt.Errorf("campaign.max_retries must be at least 1")
	}
	if c.Campaign.Workers < 1 {
		return fmt.Errorf("campaign.workers must be at least 1")
	}

	if c.DKIM.Enabled {
		if c.DKIM.Domain == "" || c.DKIM.Selector == "" || c.DKIM.KeyFile == "" {
			return fmt.Errorf("dkim requires domain, selector and key_file when enabled")
		}
	}

	return nil
}

// ValidateForRun checks the settings a send or preview run needs on top
// of Validate. Inspection commands (stats, ledger) skip these.
func (c *Config) ValidateForRun() error {
	if c.Roster.SheetURL == "" && c.Roster.CSVFile == "" {
		return fmt.Errorf("either roster.sheet_url or roster.csv_file must be set")
	}
	if c.Roster.SheetURL != "" && c.Roster.CSVFile != "" {
		return fmt.Errorf("roster.sheet_url and roster.csv_file are mutually exclusive")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host must be set")
	}
	if c.SMTP.FromAddress == "" {
		return fmt.Errorf("smtp.from_address must be set")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "herald.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
	}
	if cfg.SMTP.Timeout != 30*time.Second {
		t.Errorf("SMTP.Timeout = %v", cfg.SMTP.Timeout)
	}
	if cfg.Campaign.MaxRetries != 3 {
		t.Errorf("Campaign.MaxRetries = %d, want 3", cfg.Campaign.MaxRetries)
	}
	if cfg.Campaign.Workers != 1 {
		t.Errorf("Campaign.Workers = %d, want 1", cfg.Campaign.Workers)
	}
	if cfg.Ledger.Path != "data/ledger.db" {
		t.Errorf("Ledger.Path = %q", cfg.Ledger.Path)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
smtp:
  host: smtp.example.com
  port: 465
  username: team@conf.example
  from_name: Organizing Team
  from_address: team@conf.example
roster:
  sheet_url: https://docs.google.com/spreadsheets/d/abc123/edit
ledger:
  path: /tmp/herald/ledger.db
campaign:
  max_retries: 5
  workers: 4
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SMTP.Host != "smtp.example.com" || cfg.SMTP.Port != 465 {
		t.Errorf("SMTP = %+v", cfg.SMTP)
	}
	if cfg.Campaign.MaxRetries != 5 || cfg.Campaign.Workers != 4 {
		t.Errorf("Campaign = %+v", cfg.Campaign)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if err := cfg.ValidateForRun(); err != nil {
		t.Errorf("ValidateForRun() error = %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
smtp:
  host: smtp.example.com
  from_address: team@conf.example
`)

	t.Setenv("HERALD_SMTP_PASSWORD", "hunter2")
	t.Setenv("HERALD_SMTP_HOST", "relay.example.net")
	t.Setenv("HERALD_LEDGER_PATH", "/var/lib/herald/ledger.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SMTP.Password != "hunter2" {
		t.Errorf("SMTP.Password not taken from environment")
	}
	if cfg.SMTP.Host != "relay.example.net" {
		t.Errorf("SMTP.Host = %q, env override lost", cfg.SMTP.Host)
	}
	if cfg.Ledger.Path != "/var/lib/herald/ledger.db" {
		t.Errorf("Ledger.Path = %q", cfg.Ledger.Path)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad level", yaml: "logging:\n  level: verbose\n"},
		{name: "bad format", yaml: "logging:\n  format: xml\n"},
		{name: "bad port", yaml: "smtp:\n  port: 70000\n"},
		{name: "dkim incomplete", yaml: "dkim:\n  enabled: true\n  domain: conf.example\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load() accepted invalid configuration")
			}
		})
	}
}

func TestValidateForRun(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.ValidateForRun(); err == nil {
		t.Error("ValidateForRun() accepted a config without roster or SMTP settings")
	}

	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.FromAddress = "team@conf.example"
	cfg.Roster.SheetURL = "https://docs.google.com/spreadsheets/d/abc/edit"
	if err := cfg.ValidateForRun(); err != nil {
		t.Errorf("ValidateForRun() error = %v", err)
	}

	cfg.Roster.CSVFile = "roster.csv"
	if err := cfg.ValidateForRun(); err == nil {
		t.Error("ValidateForRun() accepted two roster sources")
	}
}

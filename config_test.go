package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if config.Rotation.Strategy != "sequential" {
		t.Errorf("Expected rotation strategy 'sequential', got '%s'", config.Rotation.Strategy)
	}

	if config.Rotation.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries to be 3, got %d", config.Rotation.MaxRetries)
	}

	if !config.Rotation.Failover {
		t.Error("Expected failover to be enabled by default")
	}

	if config.ViewportWidth != 1920 {
		t.Errorf("Expected ViewportWidth to be 1920, got %d", config.ViewportWidth)
	}

	if config.ViewportHeight != 1080 {
		t.Errorf("Expected ViewportHeight to be 1080, got %d", config.ViewportHeight)
	}

	if config.PageLoadTimeout != 45 {
		t.Errorf("Expected PageLoadTimeout to be 45, got %d", config.PageLoadTimeout)
	}

	if !config.Headless {
		t.Error("Expected Headless to be true by default")
	}

	if config.Selectors.EmailInput == "" {
		t.Error("Expected EmailInput selector to be set")
	}

	if config.Selectors.PasswordInput == "" {
		t.Error("Expected PasswordInput selector to be set")
	}

	if config.Selectors.LoggedInProbe == "" {
		t.Error("Expected LoggedInProbe selector to be set")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("accounts: [not: valid: yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected error for malformed config")
	}
	if !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("Expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadConfigValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
accounts:
  - email: first@example.com
    password: hunter2
    enabled: true
  - email: second@example.com
    password: hunter3
    enabled: false
rotation:
  strategy: sequential
  failover: true
  max_retries: 2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if len(config.Accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(config.Accounts))
	}

	if config.Accounts[0].Email != "first@example.com" {
		t.Errorf("Unexpected first account email: %s", config.Accounts[0].Email)
	}

	if config.Rotation.MaxRetries != 2 {
		t.Errorf("Expected MaxRetries 2, got %d", config.Rotation.MaxRetries)
	}

	// Defaults must survive a partial config.
	if config.ServiceURL == "" {
		t.Error("Expected default ServiceURL to be preserved")
	}
	if config.Selectors.EmailInput == "" {
		t.Error("Expected default selectors to be preserved")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		c := DefaultConfig()
		c.Accounts = []AccountConfig{{Email: "a@example.com", Password: "pw", Enabled: true}}
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no accounts", func(c *Config) { c.Accounts = nil }},
		{"account without email", func(c *Config) { c.Accounts[0].Email = "" }},
		{"enabled account without password", func(c *Config) { c.Accounts[0].Password = "" }},
		{"unknown strategy", func(c *Config) { c.Rotation.Strategy = "random" }},
		{"zero max retries", func(c *Config) { c.Rotation.MaxRetries = 0 }},
		{"empty cookie file", func(c *Config) { c.CookieFile = "" }},
		{"inverted delays", func(c *Config) { c.MinDelayMs = 5000; c.MaxDelayMs = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base()
			tt.mutate(config)

			err := config.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	config := DefaultConfig()
	config.Accounts = []AccountConfig{{Email: "a@example.com", Password: "pw", Enabled: true}}

	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Accounts[0].Email != "a@example.com" {
		t.Errorf("Round trip lost account email: %s", loaded.Accounts[0].Email)
	}

	if loaded.Rotation.MaxRetries != config.Rotation.MaxRetries {
		t.Errorf("Round trip changed MaxRetries: %d != %d", loaded.Rotation.MaxRetries, config.Rotation.MaxRetries)
	}
}

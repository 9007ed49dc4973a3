package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid marks fatal configuration problems: missing file, bad
// structure, or a pool with nothing to try. The run must not proceed.
var ErrConfigInvalid = errors.New("invalid configuration")

type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

type RotationConfig struct {
	Strategy   string `yaml:"strategy"`
	Failover   bool   `yaml:"failover"`
	MaxRetries int    `yaml:"max_retries"`
}

type Config struct {
	Accounts []AccountConfig `yaml:"accounts"`
	Rotation RotationConfig  `yaml:"rotation"`

	ServiceURL string `yaml:"service_url"`
	LoginURL   string `yaml:"login_url"`

	CookieFile    string `yaml:"cookie_file"`
	ScreenshotDir string `yaml:"screenshot_dir"`
	LogFile       string `yaml:"log_file"`

	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`

	PageLoadTimeout int `yaml:"page_load_timeout"`
	SelectorTimeout int `yaml:"selector_timeout"`

	MinDelayMs     int `yaml:"min_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
	TypeDelayMinMs int `yaml:"type_delay_min_ms"`
	TypeDelayMaxMs int `yaml:"type_delay_max_ms"`

	BackoffBaseSeconds   int `yaml:"backoff_base_seconds"`
	BackoffJitterSeconds int `yaml:"backoff_jitter_seconds"`

	DebugMode bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig holds the provider-facing CSS selectors. Each field is a
// comma-separated fallback list tried left to right, so selector drift can be
// patched in config without a rebuild.
type SelectorConfig struct {
	ConsentAccept  string `yaml:"consent_accept"`
	ConsentForm    string `yaml:"consent_form"`
	SignInEntry    string `yaml:"sign_in_entry"`
	EmailInput     string `yaml:"email_input"`
	EmailNext      string `yaml:"email_next"`
	PasswordInput  string `yaml:"password_input"`
	PasswordNext   string `yaml:"password_next"`
	CaptchaFrame   string `yaml:"captcha_frame"`
	ChallengeInput string `yaml:"challenge_input"`
	LoggedInProbe  string `yaml:"logged_in_probe"`
}

func DefaultConfig() *Config {
	dataDir := getDataDir()

	return &Config{
		Rotation: RotationConfig{
			Strategy:   "sequential",
			Failover:   true,
			MaxRetries: 3,
		},
		ServiceURL:           "https://www.youtube.com",
		LoginURL:             "https://accounts.google.com/ServiceLogin?service=youtube&continue=https%3A%2F%2Fwww.youtube.com",
		CookieFile:           filepath.Join(dataDir, "cookies.json"),
		ScreenshotDir:        filepath.Join(dataDir, "screenshots"),
		LogFile:              filepath.Join(dataDir, "warden.log"),
		Headless:             true,
		ViewportWidth:        1920,
		ViewportHeight:       1080,
		UserAgent:            "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:       "en-US,en;q=0.9",
		PageLoadTimeout:      45,
		SelectorTimeout:      12,
		MinDelayMs:           400,
		MaxDelayMs:           1800,
		TypeDelayMinMs:       60,
		TypeDelayMaxMs:       180,
		BackoffBaseSeconds:   3,
		BackoffJitterSeconds: 2,
		Selectors: SelectorConfig{
			ConsentAccept:  `button[aria-label="Accept all"], button[aria-label="Agree to the use of cookies and other data for the purposes described"]`,
			ConsentForm:    `form[action*="consent"] button`,
			SignInEntry:    `a[href*="accounts.google.com/ServiceLogin"], ytd-button-renderer a[href*="accounts.google.com"]`,
			EmailInput:     `input[type="email"]#identifierId, input[type="email"][name="identifier"]`,
			EmailNext:      `#identifierNext button, #identifierNext`,
			PasswordInput:  `input[type="password"][name="Passwd"], input[type="password"][name="password"]`,
			PasswordNext:   `#passwordNext button, #passwordNext`,
			CaptchaFrame:   `iframe[src*="recaptcha"], img#captchaimg`,
			ChallengeInput: `input[type="tel"], #totpPin`,
			LoggedInProbe:  `button#avatar-btn, #avatar-btn`,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", ErrConfigInvalid, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfigInvalid, path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfigInvalid, path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("%w: no accounts configured", ErrConfigInvalid)
	}

	for i, acct := range c.Accounts {
		if acct.Email == "" {
			return fmt.Errorf("%w: account %d has no email", ErrConfigInvalid, i)
		}
		if acct.Enabled && acct.Password == "" {
			return fmt.Errorf("%w: account %s has no password", ErrConfigInvalid, acct.Email)
		}
	}

	if c.Rotation.Strategy != "sequential" {
		return fmt.Errorf("%w: unknown rotation strategy %q", ErrConfigInvalid, c.Rotation.Strategy)
	}

	if c.Rotation.MaxRetries < 1 {
		return fmt.Errorf("%w: rotation max_retries must be >= 1, got %d", ErrConfigInvalid, c.Rotation.MaxRetries)
	}

	if c.CookieFile == "" {
		return fmt.Errorf("%w: cookie_file must not be empty", ErrConfigInvalid)
	}

	if c.MinDelayMs > c.MaxDelayMs {
		return fmt.Errorf("%w: min_delay_ms exceeds max_delay_ms", ErrConfigInvalid)
	}

	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func getDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./warden-data"
	}
	return filepath.Join(home, ".warden")
}

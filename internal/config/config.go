// Package config loads scan settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// ErrMissingRequired is returned when a setting needed by an enabled
// feature is empty.
var ErrMissingRequired = errors.New("missing required setting")

// ErrInvalidConfig is returned when a setting has an unusable value or the
// file cannot be parsed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Target holds the base URL and optional per-module overrides. Empty
// overrides are derived from URL.
type Target struct {
	URL        string `yaml:"url"`
	SearchURL  string `yaml:"search_url"`
	ContactURL string `yaml:"contact_url"`
	AdminURL   string `yaml:"admin_url"`
	MFAURL     string `yaml:"mfa_url"`
}

// Features toggles the scan modules and integrations.
type Features struct {
	Enumeration      bool `yaml:"enable_enumeration"`
	SQLInjection     bool `yaml:"enable_sql_injection"`
	XSS              bool `yaml:"enable_xss"`
	CommandInjection bool `yaml:"enable_command_injection"`
	WAFBypass        bool `yaml:"enable_waf_bypass"`
	MFABypass        bool `yaml:"enable_mfa_bypass"`
	Telegram         bool `yaml:"enable_telegram"`

	// Bruteforce appends the wordlist at WordlistPath to the enumeration
	// candidates.
	Bruteforce bool `yaml:"enable_bruteforce"`
}

// Telegram holds the bot credentials for alert delivery.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Config is the complete scan configuration.
type Config struct {
	Target   Target   `yaml:"target"`
	Features Features `yaml:"features"`
	Telegram Telegram `yaml:"telegram"`

	Method  string   `yaml:"method"`
	Params  []string `yaml:"params"`
	Threads int      `yaml:"threads"`

	Proxy       string        `yaml:"proxy"`
	UserAgent   string        `yaml:"user_agent"`
	RandomAgent bool          `yaml:"random_agent"`
	Insecure    bool          `yaml:"insecure"`
	MaxRPS      float64       `yaml:"max_rps"`
	Timeout     time.Duration `yaml:"timeout"`

	WordlistPath string `yaml:"wordlist_path"`
	MFATokenFile string `yaml:"mfa_token_file"`
	ReportPath   string `yaml:"report_path"`
	SessionPath  string `yaml:"session_path"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Features: Features{
			Enumeration:  true,
			SQLInjection: true,
			XSS:          true,
			WAFBypass:    true,
		},
		Method:     "GET",
		Threads:    1,
		Timeout:    30 * time.Second,
		ReportPath: "vulnerability_report.json",
	}
}

// LoadFile reads the YAML file at path over the defaults. Unknown keys are
// rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Targets returns the module URLs, deriving any missing override from the
// base URL.
func (c *Config) Targets() engine.Targets {
	t := engine.DefaultTargets(c.Target.URL)
	if c.Target.SearchURL != "" {
		t.Search = c.Target.SearchURL
	}
	if c.Target.ContactURL != "" {
		t.Contact = c.Target.ContactURL
	}
	if c.Target.AdminURL != "" {
		t.Admin = c.Target.AdminURL
	}
	if c.Target.MFAURL != "" {
		t.MFA = c.Target.MFAURL
	}
	return t
}

// ScanConfig converts the settings into a scanner configuration. Wordlist
// contents are not read here.
func (c *Config) ScanConfig() *engine.ScanConfig {
	return &engine.ScanConfig{
		Targets: c.Targets(),
		Modules: engine.Modules{
			Enumeration:      c.Features.Enumeration,
			SQLInjection:     c.Features.SQLInjection,
			XSS:              c.Features.XSS,
			CommandInjection: c.Features.CommandInjection,
			WAFBypass:        c.Features.WAFBypass,
			MFABypass:        c.Features.MFABypass,
		},
		Method: strings.ToUpper(c.Method),
		Params: c.Params,
	}
}

// ClientOptions returns the HTTP client settings.
func (c *Config) ClientOptions() transport.ClientOptions {
	return transport.ClientOptions{
		Timeout:            c.Timeout,
		ProxyURL:           c.Proxy,
		InsecureSkipVerify: c.Insecure,
		UserAgent:          c.UserAgent,
		RandomUserAgent:    c.RandomAgent,
		MaxRPS:             c.MaxRPS,
	}
}

// Validate reports every problem at once. Each joined error wraps
// ErrMissingRequired or ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	missing := func(what string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingRequired, what))
	}
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if c.Target.URL == "" {
		missing("target url")
	}
	for name, u := range map[string]string{
		"target url":  c.Target.URL,
		"search url":  c.Target.SearchURL,
		"contact url": c.Target.ContactURL,
		"admin url":   c.Target.AdminURL,
		"mfa url":     c.Target.MFAURL,
	} {
		if u != "" && !validHTTPURL(u) {
			invalid("%s %q is not an absolute http(s) URL", name, u)
		}
	}

	switch strings.ToUpper(c.Method) {
	case "GET", "POST":
	default:
		invalid("method %q must be GET or POST", c.Method)
	}
	if c.Threads < 1 {
		invalid("threads must be at least 1, got %d", c.Threads)
	}
	if c.MaxRPS < 0 {
		invalid("max_rps must not be negative")
	}
	if c.Timeout < 0 {
		invalid("timeout must not be negative")
	}

	if c.Features.Bruteforce && c.WordlistPath == "" {
		missing("wordlist path required for bruteforce")
	}
	if c.Features.Telegram && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		missing("telegram bot token and chat id required for notifications")
	}

	return errors.Join(errs...)
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

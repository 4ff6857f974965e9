// Package config loads the ERP connection settings.
//
// Settings come from an optional YAML file and are then overridden by ERP_*
// environment variables. A Config is read once and never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to settings left empty.
const (
	// DefaultTimeout bounds one data call.
	DefaultTimeout = 30 * time.Second
	// DefaultProbeTimeout bounds the reachability probe.
	DefaultProbeTimeout = 10 * time.Second
	// DefaultItemsPerPage is the quote listing page size.
	DefaultItemsPerPage = 20
	// DefaultAgentField is the sale.order field holding the sales agent name.
	DefaultAgentField = "x_sales_agent"
)

// Config is the connection configuration for one ERP instance.
type Config struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	UserID   int    `yaml:"user_id"`
	APIKey   string `yaml:"api_key"`

	Timeout            time.Duration `yaml:"timeout"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Debug              bool          `yaml:"debug"`

	ItemsPerPage int `yaml:"items_per_page"`
	// AgentField is the sale.order field holding the sales agent name.
	AgentField string `yaml:"agent_field"`
}

// Load reads path (if non-empty), applies environment overrides and defaults,
// and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ERP_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("ERP_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("ERP_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("ERP_AGENT_FIELD"); v != "" {
		c.AgentField = v
	}

	var err error
	if v := os.Getenv("ERP_USER_ID"); v != "" {
		if c.UserID, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("ERP_USER_ID: %w", err)
		}
	}
	if v := os.Getenv("ERP_ITEMS_PER_PAGE"); v != "" {
		if c.ItemsPerPage, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("ERP_ITEMS_PER_PAGE: %w", err)
		}
	}
	if v := os.Getenv("ERP_TIMEOUT"); v != "" {
		if c.Timeout, err = parseSeconds(v); err != nil {
			return fmt.Errorf("ERP_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("ERP_DEBUG"); v != "" {
		if c.Debug, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("ERP_DEBUG: %w", err)
		}
	}
	if v := os.Getenv("ERP_INSECURE_SKIP_VERIFY"); v != "" {
		if c.InsecureSkipVerify, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("ERP_INSECURE_SKIP_VERIFY: %w", err)
		}
	}
	return nil
}

// parseSeconds accepts a Go duration ("45s") or a bare number of seconds ("45").
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) applyDefaults() {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.ItemsPerPage <= 0 {
		c.ItemsPerPage = DefaultItemsPerPage
	}
	if c.AgentField == "" {
		c.AgentField = DefaultAgentField
	}
}

// Validate reports every missing connection setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.UserID <= 0 {
		errs = append(errs, errors.New("user_id must be a positive number"))
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Summary is the configuration as shown to operators; the API key is redacted.
type Summary struct {
	URL                string `json:"url"`
	Database           string `json:"database"`
	UserID             int    `json:"user_id"`
	APIKey             string `json:"api_key"`
	Timeout            string `json:"timeout"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	Debug              bool   `json:"debug"`
}

// Summary returns c with the API key redacted.
func (c Config) Summary() Summary {
	return Summary{
		URL:                c.URL,
		Database:           c.Database,
		UserID:             c.UserID,
		APIKey:             Redact(c.APIKey),
		Timeout:            c.Timeout.String(),
		InsecureSkipVerify: c.InsecureSkipVerify,
		Debug:              c.Debug,
	}
}

// Redact keeps the last four characters of long secrets and hides the rest.
func Redact(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

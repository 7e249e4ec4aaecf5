// Package config provides YAML-file configuration with environment-variable
// overrides for the announcement tool.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shineum/release-announcer/internal/project"
	"github.com/shineum/release-announcer/internal/settings"
)

// DefaultRecipient is the mailing list announcements go to when none is
// configured.
const DefaultRecipient = "rubytalk@ruby-lang.org"

// DefaultConfigFile is read when it exists and no path is given.
const DefaultConfigFile = "announce.yaml"

// Supported transport providers.
const (
	ProviderSMTP   = "smtp"
	ProviderSES    = "ses"
	ProviderGraph  = "graph"
	ProviderStdout = "stdout"
)

// ErrUnknownProvider is returned by Validate for an unsupported provider.
var ErrUnknownProvider = errors.New("unknown provider")

// Config holds the complete application configuration.
type Config struct {
	Announce AnnounceConfig    `yaml:"announce"`
	Email    settings.Settings `yaml:"email"`
	Provider string            `yaml:"provider"`
	SES      SESConfig         `yaml:"ses"`
	Graph    GraphConfig       `yaml:"graph"`
	TLS      TLSConfig         `yaml:"tls"`
	Project  ProjectConfig     `yaml:"project"`
	Logging  LoggingConfig     `yaml:"logging"`
}

// AnnounceConfig holds what to announce and to whom.
type AnnounceConfig struct {
	MailTo  []string `yaml:"mailto"`
	To      []string `yaml:"to"`
	Subject string   `yaml:"subject"`
	File    string   `yaml:"file"`
	Parts   []string `yaml:"parts"`
	Force   bool     `yaml:"force"`
	Trial   bool     `yaml:"trial"`
	NoEnv   bool     `yaml:"noenv"`
}

// SESConfig holds AWS SES configuration. The sender is the resolved from
// address.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration. The sender is the
// resolved from address. Authority and Endpoint select a national cloud and
// default to the global one when empty.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Authority    string `yaml:"authority"`
	Endpoint     string `yaml:"endpoint"`
}

// TLSConfig holds client TLS settings for the SMTP transport.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// ProjectConfig locates the project metadata.
type ProjectConfig struct {
	Dir      string `yaml:"dir"`
	Metadata string `yaml:"metadata"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from defaults and environment variables only.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer, then
// overrides with environment variables. Returns an error if the file does
// not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvVars()

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Recipients returns the configured recipients. The "to" list takes
// precedence over "mailto" when both are set.
func (c *Config) Recipients() []string {
	if len(c.Announce.To) > 0 {
		return c.Announce.To
	}
	return c.Announce.MailTo
}

// Validate checks the provider selection.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSMTP, ProviderSES, ProviderGraph, ProviderStdout:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}

	if c.Provider == ProviderSES && c.SES.Region == "" {
		return fmt.Errorf("ses provider selected but SES_REGION is not set")
	}
	if c.Provider == ProviderGraph && !c.GraphConfigured() {
		return fmt.Errorf("graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID and GRAPH_CLIENT_SECRET are required")
	}
	return nil
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// applyDefaults sets default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Announce.MailTo = []string{DefaultRecipient}
	c.Provider = ProviderSMTP
	c.Project.Dir = "."
	c.Project.Metadata = project.DefaultMetadataFile
	c.Logging.Level = "info"
	c.Logging.Format = "text"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values. Email
// account variables (EMAIL_*) are resolved later so that explicit settings
// keep precedence over them.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("ANNOUNCE_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("ANNOUNCE_MAILTO"); v != "" {
		c.Announce.MailTo = splitList(v)
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_AUTHORITY"); v != "" {
		c.Graph.Authority = v
	}
	if v := os.Getenv("GRAPH_ENDPOINT"); v != "" {
		c.Graph.Endpoint = v
	}

	if v := os.Getenv("TLS_CA_FILE"); v != "" {
		c.TLS.CAFile = v
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

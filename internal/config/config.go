// Package config provides configuration management for the BeneLink SDK and
// its command-line tools. It handles loading and parsing YAML configuration
// files, and provides structured access to application settings including the
// authorization server location, client credentials, token storage, proxy
// configuration, and logging behavior.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/benelink/benelink-go/internal/auth"
)

// Defaults for the BeneLink sandbox environment. Production deployments
// override base-url in the configuration file.
const (
	DefaultBaseURL     = "https://sandbox.api.benelink.gov"
	DefaultVersion     = "2"
	DefaultCallbackURL = "http://localhost:9445/callback"
	DefaultTokenDir    = "~/.benelink"
	DefaultWebAppAddr  = ":9480"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// BaseURL is the root URL of the BeneLink authorization and resource server.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// Version selects the API version segment used in endpoint paths.
	Version string `yaml:"api-version" json:"api-version"`

	// ClientID is the OAuth2 client identifier issued during application registration.
	ClientID string `yaml:"client-id" json:"client-id"`

	// ClientSecret is the OAuth2 client secret issued during application registration.
	ClientSecret string `yaml:"client-secret" json:"client-secret"`

	// CallbackURL is the redirect URI registered for the application. The
	// interactive login derives the local callback port and path from it.
	CallbackURL string `yaml:"callback-url" json:"callback-url"`

	// TokenDir is the directory where authorization tokens are persisted.
	// A leading "~" resolves to the user's home directory.
	TokenDir string `yaml:"token-dir" json:"token-dir"`

	// ProxyURL is the URL of an optional proxy server to use for outbound
	// requests. socks5://, http:// and https:// proxies are supported.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile redirects application logs from stdout to rotating files
	// under LogsDir.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB caps the total size of the logs directory in
	// megabytes. Values <= 0 disable the background cleanup.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// RequestLog enables detailed wire logging of token and resource exchanges.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// LogsDir is the directory for application and wire logs.
	LogsDir string `yaml:"logs-dir" json:"logs-dir"`

	// WebAppAddr is the listen address of the demo web application.
	WebAppAddr string `yaml:"webapp-addr" json:"webapp-addr"`
}

// LoadConfig reads and parses the configuration from the given YAML file.
// Environment overrides are applied after parsing, defaults fill whatever is
// still empty, and relative directories are resolved against the config
// file's own directory so the binary behaves the same from any working
// directory.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(configFile))

	return &cfg, nil
}

// LoadConfigOptional behaves like LoadConfig but treats a missing file as an
// empty configuration, so environment variables and defaults can supply
// everything when the tool runs without a config file.
func LoadConfigOptional(configFile string) (*Config, error) {
	cfg, err := LoadConfig(configFile)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var empty Config
	empty.applyEnvOverrides()
	empty.applyDefaults()
	return &empty, nil
}

// applyEnvOverrides lets BENELINK_* environment variables take precedence
// over file values, so credentials can stay out of the config file entirely.
func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"BENELINK_BASE_URL":      &c.BaseURL,
		"BENELINK_API_VERSION":   &c.Version,
		"BENELINK_CLIENT_ID":     &c.ClientID,
		"BENELINK_CLIENT_SECRET": &c.ClientSecret,
		"BENELINK_CALLBACK_URL":  &c.CallbackURL,
	}
	for name, target := range overrides {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*target = value
		}
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(c.Version) == "" {
		c.Version = DefaultVersion
	}
	if strings.TrimSpace(c.CallbackURL) == "" {
		c.CallbackURL = DefaultCallbackURL
	}
	if strings.TrimSpace(c.TokenDir) == "" {
		c.TokenDir = DefaultTokenDir
	}
	if strings.TrimSpace(c.LogsDir) == "" {
		c.LogsDir = "logs"
	}
	if strings.TrimSpace(c.WebAppAddr) == "" {
		c.WebAppAddr = DefaultWebAppAddr
	}
}

// resolvePaths anchors relative directories to the config file location.
// Tilde-prefixed token directories are left alone; they resolve against the
// home directory at use time.
func (c *Config) resolvePaths(baseDir string) {
	if baseDir == "" || baseDir == "." {
		return
	}
	if c.LogsDir != "" && !filepath.IsAbs(c.LogsDir) {
		c.LogsDir = filepath.Join(baseDir, c.LogsDir)
	}
	if c.TokenDir != "" && !filepath.IsAbs(c.TokenDir) && !strings.HasPrefix(c.TokenDir, "~") {
		c.TokenDir = filepath.Join(baseDir, c.TokenDir)
	}
}

// Validate checks that the configuration carries everything the
// authorization flow needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("config: client-id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("config: client-secret is required")
	}
	if strings.TrimSpace(c.CallbackURL) == "" {
		return fmt.Errorf("config: callback-url is required")
	}
	return nil
}

// AuthConfig projects the loaded configuration into the immutable value the
// authorization core consumes. The core never sees the file loader.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		BaseURL:      c.BaseURL,
		Version:      c.Version,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		CallbackURL:  c.CallbackURL,
	}
}

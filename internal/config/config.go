package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Configuration errors. Each names the missing input; they are fatal to
// any operation that needs the remote service.
var (
	ErrHostnameMissing = errors.New("could not find the panel's hostname - did you configure the remote server for the product?")
	ErrTeamIDMissing   = errors.New("could not find the panel's team ID - did you configure the remote server for the product?")
	ErrAPIKeyMissing   = errors.New("could not find the panel's API key - did you configure the remote server for the product?")
)

// Config represents the complete connector configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" envconfig:"SERVER"`
	Remote       RemoteConfig       `yaml:"remote" envconfig:"REMOTE"`
	Logging      LoggingConfig      `yaml:"logging" envconfig:"LOGGING"`
	Provisioning ProvisioningConfig `yaml:"provisioning" envconfig:"PROVISIONING"`
	Security     SecurityConfig     `yaml:"security" envconfig:"SECURITY"`
}

// ServerConfig contains HTTP server configuration for the bridge itself.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// RemoteConfig describes one tenant of the remote license service.
type RemoteConfig struct {
	// Hostname as stored by the billing platform. May carry literal
	// DOT/DASH substitutions and may be a bare IP.
	Hostname string `yaml:"hostname" envconfig:"HOSTNAME"`
	// Secure selects https when the hostname is not an IP literal.
	Secure bool `yaml:"secure" envconfig:"SECURE" default:"true"`
	// TeamID selects the tenant. Subject to the same DASH mangling.
	TeamID string `yaml:"team_id" envconfig:"TEAM_ID"`
	// APIKey is the bearer credential. Alternatively APIKeyFile points at
	// a sealed credential file opened with APIKeyPassphrase.
	APIKey           string `yaml:"api_key" envconfig:"API_KEY"`
	APIKeyFile       string `yaml:"api_key_file" envconfig:"API_KEY_FILE"`
	APIKeyPassphrase string `yaml:"api_key_passphrase" envconfig:"API_KEY_PASSPHRASE"`

	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5s"`
	CreateStatus   int           `yaml:"create_status" envconfig:"CREATE_STATUS" default:"200"`
	RecreateStatus int           `yaml:"recreate_status" envconfig:"RECREATE_STATUS" default:"201"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"license-bridge"`
}

// ProvisioningConfig carries defaults applied to every lifecycle
// operation unless the request overrides them.
type ProvisioningConfig struct {
	// ServicePrefix namespaces serviceid metadata values.
	ServicePrefix string `yaml:"service_prefix" envconfig:"SERVICE_PREFIX" default:"BILLING"`
	// Options are server-side default provisioning options, keyed by
	// option id (customerid, productid, iplimit, ...).
	Options map[string]string `yaml:"options" envconfig:"OPTIONS"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/bridge.log"`
}

// SecurityConfig contains rate limiting for the bridge's own API.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// Load reads configuration from the environment and, when present, the
// file named by BRIDGE_CONFIG_FILE (default "bridge.yml"). File values
// fill in what the environment left empty.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("BRIDGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := os.Getenv("BRIDGE_CONFIG_FILE")
	if configFile == "" {
		configFile = "bridge.yml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg.merge(fileCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge fills empty connection fields of cfg from file. Environment wins.
func (c *Config) merge(file *Config) {
	if c.Remote.Hostname == "" {
		c.Remote.Hostname = file.Remote.Hostname
	}
	if c.Remote.TeamID == "" {
		c.Remote.TeamID = file.Remote.TeamID
	}
	if c.Remote.APIKey == "" {
		c.Remote.APIKey = file.Remote.APIKey
	}
	if c.Remote.APIKeyFile == "" {
		c.Remote.APIKeyFile = file.Remote.APIKeyFile
	}
	if c.Provisioning.Options == nil {
		c.Provisioning.Options = file.Provisioning.Options
	}
}

// Validate checks that the remote service is reachable in principle.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remote.Hostname) == "" {
		return ErrHostnameMissing
	}
	if strings.TrimSpace(c.Remote.TeamID) == "" {
		return ErrTeamIDMissing
	}
	if strings.TrimSpace(c.Remote.APIKey) == "" && strings.TrimSpace(c.Remote.APIKeyFile) == "" {
		return ErrAPIKeyMissing
	}
	return nil
}

// unmangleHostname undoes the literal substitutions some billing
// platforms apply to stored hostnames.
var hostnameSubstitutions = []struct{ from, to string }{
	{"DOT", "."},
	{"DASH", "-"},
}

// BaseURL returns the normalized scheme://host of the remote panel,
// without a trailing slash.
func (r RemoteConfig) BaseURL() (string, error) {
	hostname := r.Hostname
	if hostname == "" {
		return "", ErrHostnameMissing
	}
	for _, s := range hostnameSubstitutions {
		hostname = strings.ReplaceAll(hostname, s.from, s.to)
	}

	if !strings.Contains(hostname, "://") {
		// An IP literal always speaks plain http; otherwise the secure
		// flag decides.
		if net.ParseIP(hostname) != nil {
			hostname = "http://" + hostname
		} else if r.Secure {
			hostname = "https://" + hostname
		} else {
			hostname = "http://" + hostname
		}
	}
	return strings.TrimRight(hostname, "/"), nil
}

// NormalizedTeamID undoes DASH mangling in the stored team identifier.
func (r RemoteConfig) NormalizedTeamID() (string, error) {
	teamID := r.TeamID
	if teamID == "" {
		return "", ErrTeamIDMissing
	}
	return strings.ReplaceAll(teamID, "DASH", "-"), nil
}

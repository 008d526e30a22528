// Package config loads the trustplane configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/trustplane/internal/identity"
	"github.com/ppiankov/trustplane/internal/inference"
	"github.com/ppiankov/trustplane/internal/snapshot"
	"github.com/ppiankov/trustplane/internal/telemetry"
)

// DefaultAddr is the gRPC listen address when none is configured.
const DefaultAddr = "127.0.0.1:7443"

// StateConfig selects the snapshot backend.
type StateConfig struct {
	Backend string `yaml:"backend"` // file, sqlite, postgres, none
	Path    string `yaml:"path"`    // file and sqlite
	DSN     string `yaml:"dsn"`     // postgres
}

// Target returns the backend-specific location passed to snapshot.Open.
func (s StateConfig) Target() string {
	if strings.EqualFold(s.Backend, snapshot.BackendPostgres) {
		return s.DSN
	}
	return s.Path
}

// ServerConfig holds gRPC server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full configuration document.
type Config struct {
	State      StateConfig                           `yaml:"state"`
	Journal    string                                `yaml:"journal"`
	PolicyFile string                                `yaml:"policy_file"`
	Roles      map[identity.Role]identity.RoleConfig `yaml:"roles"`
	PIN        string                                `yaml:"pin"`
	Telemetry  []telemetry.SinkConfig                `yaml:"telemetry"`
	Inference  inference.Config                      `yaml:"inference"`
	Server     ServerConfig                          `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		State:     StateConfig{Backend: snapshot.BackendFile, Path: snapshot.DefaultPath()},
		Roles:     identity.DefaultRoles(),
		Inference: inference.Config{Model: inference.DefaultModel},
		Server:    ServerConfig{Addr: DefaultAddr},
	}
}

// DefaultPath returns ~/.trustplane/config.yaml.
func DefaultPath() string {
	return filepath.Join(snapshot.DefaultDir(), "config.yaml")
}

// Load reads configuration from a YAML file and applies environment
// overrides. Empty path falls back to ~/.trustplane/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration that cannot work.
func (c *Config) Validate() error {
	for role := range c.Roles {
		if _, err := identity.ParseRole(string(role)); err != nil {
			return fmt.Errorf("config: roles: %w", err)
		}
	}
	switch strings.ToLower(c.State.Backend) {
	case "", snapshot.BackendFile, snapshot.BackendSQLite, snapshot.BackendNone:
	case snapshot.BackendPostgres:
		if c.State.DSN == "" {
			return fmt.Errorf("config: state: postgres backend requires dsn")
		}
	default:
		return fmt.Errorf("config: state: unknown backend %q", c.State.Backend)
	}
	return nil
}

// ApplyEnv overlays secrets from the environment. DD_API_KEY (or
// DATADOG_API_KEY) fills datadog sinks without a key and adds a datadog
// sink when none is configured.
func ApplyEnv(c *Config, getenv func(string) string) {
	apiKey := getenv("DD_API_KEY")
	if apiKey == "" {
		apiKey = getenv("DATADOG_API_KEY")
	}
	site := getenv("DD_SITE")
	appKey := getenv("DATADOG_APP_KEY")

	hasDatadog := false
	for i := range c.Telemetry {
		s := &c.Telemetry[i]
		if !strings.EqualFold(s.Type, "datadog") {
			continue
		}
		hasDatadog = true
		if s.APIKey == "" {
			s.APIKey = apiKey
		}
		if s.Site == "" {
			s.Site = site
		}
		if s.AppKey == "" {
			s.AppKey = appKey
		}
	}
	if !hasDatadog && apiKey != "" {
		c.Telemetry = append(c.Telemetry, telemetry.SinkConfig{
			Type:   "datadog",
			APIKey: apiKey,
			Site:   site,
			AppKey: appKey,
			Tags:   []string{"env:dev"},
		})
	}

	if v := getenv("TRUSTPLANE_INFERENCE_KEY"); v != "" {
		c.Inference.APIKey = v
	}
	if v := getenv("TRUSTPLANE_INFERENCE_URL"); v != "" {
		c.Inference.APIURL = v
	}
	if v := getenv("TRUSTPLANE_PIN"); v != "" {
		c.PIN = v
	}
}

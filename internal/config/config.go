// Package config centralizes runtime configuration for a yo node. It loads a
// YAML file, applies YO_* environment overrides and fills every unset field
// with a default, so a node can start with no file at all during development.
// Operators point the node at a file with the -config flag or YO_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// PeerConfig is a statically known node of the network.
type PeerConfig struct {
	Name    string `yaml:"name"`
	Key     string `yaml:"key"`
	Address string `yaml:"address"`
	Notary  bool   `yaml:"notary"`
}

// Config holds configurable options for a yo node.
type Config struct {
	Name            string        `yaml:"name"`
	KeyFile         string        `yaml:"key_file"`
	DBFile          string        `yaml:"db_file"`
	Port            int           `yaml:"port"`
	AdvertiseAddr   string        `yaml:"advertise_addr"`
	Notary          bool          `yaml:"notary"`
	NotaryName      string        `yaml:"notary_name"`
	NotaryURL       string        `yaml:"notary_url"`
	Peers           []PeerConfig  `yaml:"peers"`
	EnableMDNS      bool          `yaml:"enable_mdns"`
	MDNSServiceName string        `yaml:"mdns_service_name"`
	LogBuffer       int           `yaml:"log_buffer"`
	FlowTimeout     time.Duration `yaml:"flow_timeout"`
	OTelEndpoint    string        `yaml:"otel_endpoint"`
}

type envOverrides struct {
	Name            string         `env:"YO_NAME"`
	KeyFile         string         `env:"YO_KEY_FILE"`
	DBFile          string         `env:"YO_DB_FILE"`
	Port            *int           `env:"YO_PORT"`
	AdvertiseAddr   string         `env:"YO_ADVERTISE_ADDR"`
	Notary          *bool          `env:"YO_NOTARY"`
	NotaryName      string         `env:"YO_NOTARY_NAME"`
	NotaryURL       string         `env:"YO_NOTARY_URL"`
	EnableMDNS      *bool          `env:"YO_MDNS"`
	MDNSServiceName string         `env:"YO_MDNS_SERVICE"`
	FlowTimeout     *time.Duration `env:"YO_FLOW_TIMEOUT"`
	OTelEndpoint    string         `env:"YO_OTEL_ENDPOINT"`
}

// Default returns the development defaults.
func Default() *Config {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "yo-node"
	}
	return &Config{
		Name:            name,
		KeyFile:         "yo_key.pem",
		DBFile:          "yo.db",
		Port:            8080,
		NotaryName:      "Controller",
		MDNSServiceName: "_yo._tcp",
		LogBuffer:       200,
		FlowTimeout:     30 * time.Second,
	}
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// merges defaults into zero-value fields. An empty path or a missing file
// yields defaults; a file that cannot be parsed is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	mergeDefaults(cfg, Default())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Notary && c.NotaryURL != "" {
		return errors.New("a notary node cannot also use a remote notary")
	}
	seen := make(map[string]struct{}, len(c.Peers))
	keys := make(map[string]string, len(c.Peers))
	for _, p := range c.Peers {
		if p.Name == "" || p.Key == "" {
			return fmt.Errorf("peer entries need a name and a key: %+v", p)
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("duplicate peer %q", p.Name)
		}
		if other, ok := keys[p.Key]; ok {
			return fmt.Errorf("peer %q reuses the key of %q", p.Name, other)
		}
		seen[p.Name] = struct{}{}
		keys[p.Key] = p.Name
	}
	return nil
}

// ListenAddr is the address the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setString(&cfg.Name, o.Name)
	setString(&cfg.KeyFile, o.KeyFile)
	setString(&cfg.DBFile, o.DBFile)
	setString(&cfg.AdvertiseAddr, o.AdvertiseAddr)
	setString(&cfg.NotaryName, o.NotaryName)
	setString(&cfg.NotaryURL, o.NotaryURL)
	setString(&cfg.MDNSServiceName, o.MDNSServiceName)
	setString(&cfg.OTelEndpoint, o.OTelEndpoint)
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.Notary != nil {
		cfg.Notary = *o.Notary
	}
	if o.EnableMDNS != nil {
		cfg.EnableMDNS = *o.EnableMDNS
	}
	if o.FlowTimeout != nil {
		cfg.FlowTimeout = *o.FlowTimeout
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDefaults(c, def *Config) {
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.KeyFile == "" {
		c.KeyFile = def.KeyFile
	}
	if c.DBFile == "" {
		c.DBFile = def.DBFile
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.NotaryName == "" {
		c.NotaryName = def.NotaryName
	}
	if c.MDNSServiceName == "" {
		c.MDNSServiceName = def.MDNSServiceName
	}
	if c.LogBuffer == 0 {
		c.LogBuffer = def.LogBuffer
	}
	if c.FlowTimeout == 0 {
		c.FlowTimeout = def.FlowTimeout
	}
}

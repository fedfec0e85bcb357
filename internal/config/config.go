// Package config loads the initial connection registry contents from
// environment variables and an optional config file. Connection URIs are
// never logged or exposed to tool responses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/SedlarDavid/dbconn-mcp/internal/db"
)

// Env var names for connection strings. If set, they define the
// "default"/"default" and "default"/"monitor" slots.
const (
	EnvDefaultURI = "DBCONN_DEFAULT_URI"
	EnvMonitorURI = "DBCONN_MONITOR_URI"
	EnvDBType     = "DBCONN_DB_TYPE"
)

// DefaultConfigDir is the directory for the optional config file.
// Config file path: ~/.dbconn-mcp/config.yaml
const DefaultConfigDir = ".dbconn-mcp"
const ConfigFileName = "config.yaml"

// Config holds loaded connection configuration, keyed by key then target.
// URIs are stored but never included in logs or tool output.
type Config struct {
	entries map[string]map[string]db.ConnInfo
}

// Load reads configuration from the environment and, if present,
// ~/.dbconn-mcp/config.yaml. Env vars override file values for the same
// slot.
func Load() (*Config, error) {
	c := &Config{entries: make(map[string]map[string]db.ConnInfo)}

	// 1) Optional config file (base)
	configPath, err := configFilePath()
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}
	if configPath != "" {
		if err := c.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	// 2) Env overrides
	typ := os.Getenv(EnvDBType)
	if typ == "" {
		typ = "postgres"
	}
	if v := os.Getenv(EnvDefaultURI); v != "" {
		c.set(db.DefaultKey, db.DefaultTarget, db.ConnInfo{Type: typ, URI: v})
	}
	if v := os.Getenv(EnvMonitorURI); v != "" {
		c.set(db.DefaultKey, "monitor", db.ConnInfo{Type: typ, URI: v})
	}

	return c, nil
}

func (c *Config) set(key, target string, info db.ConnInfo) {
	if c.entries[key] == nil {
		c.entries[key] = make(map[string]db.ConnInfo)
	}
	c.entries[key][target] = info
}

func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(home, DefaultConfigDir, ConfigFileName)
	_, err = os.Stat(p)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p, nil
}

type fileFormat struct {
	Connections map[string]map[string]fileEntry `yaml:"connections"`
}

type fileEntry struct {
	Type    string            `yaml:"type"`
	URI     string            `yaml:"uri"`
	Options map[string]string `yaml:"options,omitempty"`
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.parse(data)
}

func (c *Config) parse(data []byte) error {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for key, targets := range f.Connections {
		for target, e := range targets {
			if e.URI == "" {
				continue
			}
			typ := e.Type
			if typ == "" {
				typ = "postgres"
			}
			c.set(key, target, db.ConnInfo{Type: typ, URI: e.URI, Options: e.Options})
		}
	}
	return nil
}

// Seed registers every loaded entry into the registry. Later registrations
// through the registry's own API take precedence as usual.
func (c *Config) Seed(r *db.Registry) {
	for key, targets := range c.entries {
		for target, info := range targets {
			r.Add(key, target, info)
		}
	}
}

// Keys returns all configured key groups, sorted. Safe to log.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Targets returns all configured targets under a key, sorted. Safe to log.
func (c *Config) Targets(key string) []string {
	targets := make([]string, 0, len(c.entries[key]))
	for target := range c.entries[key] {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	return targets
}

// HasConnection returns whether the given slot is configured.
func (c *Config) HasConnection(key, target string) bool {
	_, ok := c.entries[key][target]
	return ok
}

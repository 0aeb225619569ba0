package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/vulndeck/vulndeck/pkg/envutil"
)

// Config represents the structure of vulndeck.yaml provided by operators.
// The schema is intentionally simple to keep the file easy to edit.
//
// Example YAML:
//
//	database:
//	  dsn: postgres://vulndeck@localhost/vulndeck?sslmode=disable
//	cache_dir: /var/cache/vulndeck
//	kev:
//	  enabled: true
//	  # url defaults to the CISA catalog when omitted
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	CacheDir string         `yaml:"cache_dir"`
	KEV      KEVConfig      `yaml:"kev"`
}

// DatabaseConfig points at the shared record store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// KEVConfig controls known-exploited flagging.
type KEVConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
}

// KEVEnabled defaults to true when unset.
func (c *Config) KEVEnabled() bool {
	return c.KEV.Enabled == nil || *c.KEV.Enabled
}

// Default returns the configuration used when no file is given. The DSN can
// still come from $VULNDECK_DSN.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{DSN: envutil.String("VULNDECK_DSN", "")},
	}
}

// Load parses a vulndeck.yaml file from the given path and applies the
// $VULNDECK_DSN override. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if env := envutil.String("VULNDECK_DSN", ""); env != "" {
		c.Database.DSN = env
	}
	return &c, nil
}

/*
Package config loads the server configuration.

PURPOSE:
  One YAML file drives deployment choices: listen address, cache database
  path, the Odoo source connection, and the sync staleness policy. Every
  value has a sensible default so the server runs with no file at all;
  source credentials can also come from the environment so they stay out
  of checked-in config.

PRECEDENCE:
  defaults < config file < environment (credentials only)
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML support for "24h" style values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full server configuration.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	Database struct {
		// Path of the SQLite cache database.
		Path string `yaml:"path"`
	} `yaml:"database"`

	Source struct {
		URL      string `yaml:"url"`
		Database string `yaml:"database"`
		Username string `yaml:"username"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"source"`

	Sync struct {
		// StalenessThreshold is how old the cached snapshot may get
		// before a refresh triggers an incremental fetch.
		StalenessThreshold Duration `yaml:"staleness_threshold"`

		// OverlapWindow is the lookback applied to the incremental
		// "since" bound to tolerate clock skew and late-arriving rows.
		OverlapWindow Duration `yaml:"overlap_window"`
	} `yaml:"sync"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Listen = ":8080"
	cfg.Database.Path = "insight.db"
	cfg.Sync.StalenessThreshold = Duration(24 * time.Hour)
	cfg.Sync.OverlapWindow = Duration(3 * time.Hour)
	return cfg
}

// Load reads the config file, layering it over the defaults. A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// run on defaults
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// Credentials may live in the environment instead of the file.
	if v := os.Getenv("ODOO_URL"); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv("ODOO_DB"); v != "" {
		cfg.Source.Database = v
	}
	if v := os.Getenv("ODOO_USERNAME"); v != "" {
		cfg.Source.Username = v
	}
	if v := os.Getenv("ODOO_API_KEY"); v != "" {
		cfg.Source.APIKey = v
	}

	if cfg.Sync.StalenessThreshold <= 0 {
		return Config{}, fmt.Errorf("sync.staleness_threshold must be positive")
	}
	if cfg.Sync.OverlapWindow < 0 {
		return Config{}, fmt.Errorf("sync.overlap_window must not be negative")
	}
	return cfg, nil
}

package config

import (
	"time"
)

type Config struct {
	Version       int           `toml:"version"`
	Registry      Registry      `toml:"registry"`
	Libraries     []Library     `toml:"libraries"`
	Invoke        Invoke        `toml:"invoke"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Registry struct {
	SearchPaths    []string `toml:"search_paths"`
	VerifyManifest bool     `toml:"verify_manifest"`
	ManifestPath   string   `toml:"manifest_path"`
}

type Library struct {
	Path        string   `toml:"path"`
	Description string   `toml:"description"`
	Parsers     []Parser `toml:"parsers"`
}

type Parser struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type Invoke struct {
	Timeout       time.Duration `toml:"timeout"`
	RatePerSecond float64       `toml:"rate_per_second"`
	Burst         int           `toml:"burst"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	Exclude  []string      `toml:"exclude"`
}

type Observability struct {
	Enabled      bool   `toml:"enabled"`
	Address      string `toml:"address"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// DefaultConfig returns a configuration with every default applied and no
// preloaded libraries.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultInvokeTimeout = 30 * time.Second
	defaultDebounce      = 300 * time.Millisecond
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg, filepath.Dir(path))

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Registry.ManifestPath) == "" {
		cfg.Registry.ManifestPath = "plugins/manifest.toml"
	}
	if cfg.Invoke.Timeout == 0 {
		cfg.Invoke.Timeout = defaultInvokeTimeout
	}
	if cfg.Invoke.Burst <= 0 {
		cfg.Invoke.Burst = 1
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "data/history.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = defaultDebounce
	}
	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "snippethost"
	}
}

// normalize trims string fields and anchors relative registry paths at the
// directory holding the config file.
func normalize(cfg *Config, baseDir string) {
	cfg.Registry.ManifestPath = anchor(baseDir, strings.TrimSpace(cfg.Registry.ManifestPath))
	searchPaths := make([]string, 0, len(cfg.Registry.SearchPaths))
	for _, dir := range cfg.Registry.SearchPaths {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		searchPaths = append(searchPaths, anchor(baseDir, dir))
	}
	cfg.Registry.SearchPaths = searchPaths

	for i := range cfg.Libraries {
		lib := &cfg.Libraries[i]
		lib.Path = strings.TrimSpace(lib.Path)
		lib.Description = strings.TrimSpace(lib.Description)
		for j := range lib.Parsers {
			lib.Parsers[j].Name = strings.TrimSpace(lib.Parsers[j].Name)
			lib.Parsers[j].Description = strings.TrimSpace(lib.Parsers[j].Description)
		}
	}

	cfg.History.Path = anchor(baseDir, strings.TrimSpace(cfg.History.Path))
	cfg.Observability.Address = strings.TrimSpace(cfg.Observability.Address)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	cfg.Observability.ServiceName = strings.TrimSpace(cfg.Observability.ServiceName)
}

func anchor(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" || baseDir == "." {
		return p
	}
	return filepath.Join(baseDir, p)
}

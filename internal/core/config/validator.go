package config

import (
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// Validate checks a loaded configuration for values the host cannot run with.
func Validate(cfg *Config) error {
	validators := []func(*Config) error{
		validateVersion,
		validateRegistry,
		validateLibraries,
		validateInvoke,
		validateHistory,
		validateWatch,
		validateObservability,
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateRegistry(cfg *Config) error {
	if cfg.Registry.VerifyManifest && strings.TrimSpace(cfg.Registry.ManifestPath) == "" {
		return fmt.Errorf("registry.manifest_path must be set when registry.verify_manifest is true")
	}
	return nil
}

func validateLibraries(cfg *Config) error {
	seenPaths := make(map[string]bool, len(cfg.Libraries))
	for i, lib := range cfg.Libraries {
		ref := fmt.Sprintf("libraries[%d]", i)
		if lib.Path == "" {
			return fmt.Errorf("%s.path must not be empty", ref)
		}
		if !utf8.ValidString(lib.Path) || strings.ContainsRune(lib.Path, 0) {
			return fmt.Errorf("%s.path %q is not a valid path", ref, lib.Path)
		}
		if seenPaths[lib.Path] {
			return fmt.Errorf("%s.path %q is duplicated", ref, lib.Path)
		}
		seenPaths[lib.Path] = true

		seenParsers := make(map[string]bool, len(lib.Parsers))
		for j, parser := range lib.Parsers {
			if parser.Name == "" {
				return fmt.Errorf("%s.parsers[%d].name must not be empty", ref, j)
			}
			if seenParsers[parser.Name] {
				return fmt.Errorf("%s.parsers[%d].name %q is duplicated", ref, j, parser.Name)
			}
			seenParsers[parser.Name] = true
		}
	}
	return nil
}

func validateInvoke(cfg *Config) error {
	if cfg.Invoke.Timeout < 0 {
		return fmt.Errorf("invoke.timeout must be >= 0, got %s", cfg.Invoke.Timeout)
	}
	if cfg.Invoke.RatePerSecond < 0 {
		return fmt.Errorf("invoke.rate_per_second must be >= 0, got %v", cfg.Invoke.RatePerSecond)
	}
	if cfg.Invoke.Burst < 1 {
		return fmt.Errorf("invoke.burst must be >= 1, got %d", cfg.Invoke.Burst)
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must be set when history.enabled is true")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %s", cfg.Watch.Debounce)
	}
	for i, pattern := range cfg.Watch.Exclude {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("watch.exclude[%d] must not be empty", i)
		}
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if !cfg.Observability.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Observability.Address); err != nil {
		return fmt.Errorf("observability.address %q: %w", cfg.Observability.Address, err)
	}
	return nil
}

package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: SNIPPETHOST_[SECTION]_[KEY] (e.g., SNIPPETHOST_INVOKE_TIMEOUT).
func ApplyEnvOverrides(cfg *Config) {
	// Registry
	setEnvBool(&cfg.Registry.VerifyManifest, "SNIPPETHOST_REGISTRY_VERIFY_MANIFEST")
	setEnvString(&cfg.Registry.ManifestPath, "SNIPPETHOST_REGISTRY_MANIFEST_PATH")
	setEnvList(&cfg.Registry.SearchPaths, "SNIPPETHOST_REGISTRY_SEARCH_PATHS")

	// Invoke
	setEnvDuration(&cfg.Invoke.Timeout, "SNIPPETHOST_INVOKE_TIMEOUT")
	setEnvFloat64(&cfg.Invoke.RatePerSecond, "SNIPPETHOST_INVOKE_RATE_PER_SECOND")
	setEnvInt(&cfg.Invoke.Burst, "SNIPPETHOST_INVOKE_BURST")

	// History
	setEnvBool(&cfg.History.Enabled, "SNIPPETHOST_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "SNIPPETHOST_HISTORY_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "SNIPPETHOST_WATCH_DEBOUNCE")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "SNIPPETHOST_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "SNIPPETHOST_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "SNIPPETHOST_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "SNIPPETHOST_OBSERVABILITY_SERVICE_NAME")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits on the OS path list separator, like PATH.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, string(os.PathListSeparator))
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}

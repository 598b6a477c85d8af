package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads, defaults, and validates configuration from configDir,
// returning a ready-to-use *Config. Grounded on the teacher's
// config.Initialize: load → apply defaults → validate.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	withDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"log_rules", stats.LogRules,
		"critical_services", stats.CriticalServices,
		"protected_services", stats.ProtectedServices)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "sysdaemon.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// An empty directory is not fatal: the daemon can run on
			// pure defaults for `check`/test invocations. A production
			// `run` invocation still requires backend URLs, which
			// validate() enforces.
			slog.Warn("no sysdaemon.yaml found, proceeding with defaults", "path", path)
			cfg := &Config{configDir: configDir}
			return cfg, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	cfg.configDir = configDir

	// Protected services are always a superset of the hard-coded list,
	// regardless of what the operator configured (spec.md §4.4).
	cfg.Executor.ProtectedServices = mergeUnique(cfg.Executor.ProtectedServices, ProtectedServices())

	return &cfg, nil
}

func mergeUnique(configured, required []string) []string {
	seen := make(map[string]bool, len(configured)+len(required))
	out := make([]string, 0, len(configured)+len(required))
	for _, s := range append(append([]string{}, configured...), required...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

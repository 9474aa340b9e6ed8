package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, VIEWS_CONFIG env, ./views.yaml)
//  3. VIEWS_* environment variable overrides
//  4. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. VIEWS_CONFIG environment variable
// 3. ./views.yaml in the current directory
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("VIEWS_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat("views.yaml"); err == nil {
		return "views.yaml"
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps VIEWS_* environment variables onto config fields.
// Malformed numbers, durations and booleans are errors.
func applyEnvOverrides(cfg *Config) error {
	env := envReader{}

	env.setString("VIEWS_TEMPLATES_DIR", &cfg.Templates.Dir)
	env.setString("VIEWS_TEMPLATES_EXTENSION", &cfg.Templates.Extension)
	if v := os.Getenv("VIEWS_TEMPLATES_OVERRIDES"); v != "" {
		cfg.Templates.Overrides = splitList(v)
	}

	env.setInt("VIEWS_RENDER_SOFT_LIMIT", &cfg.Render.SoftLimit)
	env.setInt("VIEWS_RENDER_DRAIN_SIZE", &cfg.Render.DrainSize)
	env.setDuration("VIEWS_RENDER_WAIT_TIMEOUT", &cfg.Render.WaitTimeout)
	env.setBool("VIEWS_RENDER_STREAMING", &cfg.Render.Streaming)

	env.setBool("VIEWS_RENAMING_ENABLED", &cfg.Renaming.Enabled)
	env.setString("VIEWS_RENAMING_MAP_FILE", &cfg.Renaming.MapFile)

	env.setBool("VIEWS_CSP_NONCE_ENABLED", &cfg.CSP.NonceEnabled)
	env.setString("VIEWS_CSP_POLICY", &cfg.CSP.Policy)

	env.setString("VIEWS_I18N_MESSAGES_FILE", &cfg.I18n.MessagesFile)
	env.setString("VIEWS_I18N_LOCALE", &cfg.I18n.Locale)

	env.setBool("VIEWS_ETAGS_ENABLED", &cfg.ETags.Enabled)
	env.setBool("VIEWS_ETAGS_STRONG", &cfg.ETags.Strong)

	env.setString("VIEWS_THEME_MANIFEST", &cfg.Theme.Manifest)
	env.setString("VIEWS_THEME_NAME", &cfg.Theme.Name)
	env.setString("VIEWS_THEME_VARIANT", &cfg.Theme.Variant)

	env.setString("VIEWS_SERVER_ADDR", &cfg.Server.Addr)
	env.setString("VIEWS_SERVER_PREFIX", &cfg.Server.Prefix)
	env.setDuration("VIEWS_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	env.setDuration("VIEWS_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	env.setDuration("VIEWS_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	env.setBool("VIEWS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.setString("VIEWS_METRICS_PATH", &cfg.Metrics.Path)

	env.setString("VIEWS_LOG_LEVEL", &cfg.Log.Level)
	env.setString("VIEWS_LOG_FORMAT", &cfg.Log.Format)

	return env.err
}

// envReader records the first malformed variable it sees.
type envReader struct {
	err error
}

func (e *envReader) setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envReader) setBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

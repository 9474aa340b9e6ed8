// Package config provides configuration for view rendering and serving.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (explicit path, VIEWS_CONFIG, ./views.yaml)
//  3. Environment variable overrides (VIEWS_ prefix)
//  4. Validation
package config

import "time"

// Config holds all configuration for go-views.
type Config struct {
	Templates TemplatesConfig `yaml:"templates"`
	Render    RenderConfig    `yaml:"render"`
	Renaming  RenamingConfig  `yaml:"renaming"`
	CSP       CSPConfig       `yaml:"csp"`
	I18n      I18nConfig      `yaml:"i18n"`
	ETags     ETagsConfig     `yaml:"etags"`
	Theme     ThemeConfig     `yaml:"theme"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// TemplatesConfig locates template sources.
type TemplatesConfig struct {
	Dir       string `yaml:"dir"`       // default: "templates"
	Extension string `yaml:"extension"` // default: ".tpl"
	// Overrides are searched before Dir, in order, so a file there shadows
	// the template of the same name in Dir.
	Overrides []string `yaml:"overrides"`
}

// RenderConfig tunes the render loop.
type RenderConfig struct {
	SoftLimit   int           `yaml:"soft_limit"`   // default: 2048
	DrainSize   int           `yaml:"drain_size"`   // default: 512
	WaitTimeout time.Duration `yaml:"wait_timeout"` // default: 60s
	Streaming   bool          `yaml:"streaming"`    // default: false
}

// RenamingConfig enables CSS/ID renaming.
type RenamingConfig struct {
	Enabled bool   `yaml:"enabled"`
	MapFile string `yaml:"map_file"` // YAML with css/id maps
}

// CSPConfig controls nonce injection.
type CSPConfig struct {
	NonceEnabled bool   `yaml:"nonce_enabled"`
	Policy       string `yaml:"policy"` // "{nonce}" is replaced per request
}

// I18nConfig selects the message catalog.
type I18nConfig struct {
	MessagesFile string `yaml:"messages_file"`
	Locale       string `yaml:"locale"` // default: "en"
}

// ETagsConfig controls response ETags.
type ETagsConfig struct {
	Enabled bool `yaml:"enabled"`
	Strong  bool `yaml:"strong"`
}

// ThemeConfig selects a go-theme manifest.
type ThemeConfig struct {
	Manifest string `yaml:"manifest"` // YAML manifest path
	Name     string `yaml:"name"`
	Variant  string `yaml:"variant"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // default: ":8080"
	Prefix          string        `yaml:"prefix"`           // default: "/views"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Templates: TemplatesConfig{
			Dir:       "templates",
			Extension: ".tpl",
		},
		Render: RenderConfig{
			SoftLimit:   2048,
			DrainSize:   512,
			WaitTimeout: 60 * time.Second,
		},
		I18n: I18nConfig{
			Locale: "en",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Prefix:          "/views",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

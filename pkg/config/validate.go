package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-views/internal/logging"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Templates.Dir) == "" {
		errs = append(errs, fmt.Errorf("templates.dir is required"))
	}
	if ext := c.Templates.Extension; ext != "" && !strings.HasPrefix(ext, ".") {
		errs = append(errs, fmt.Errorf("templates.extension must start with \".\", got %q", ext))
	}

	if c.Render.SoftLimit <= 0 {
		errs = append(errs, fmt.Errorf("render.soft_limit must be > 0, got %d", c.Render.SoftLimit))
	}
	if c.Render.DrainSize <= 0 {
		errs = append(errs, fmt.Errorf("render.drain_size must be > 0, got %d", c.Render.DrainSize))
	}
	if c.Render.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("render.wait_timeout must be > 0, got %s", c.Render.WaitTimeout))
	}

	if c.ETags.Enabled && c.Render.Streaming {
		errs = append(errs, fmt.Errorf("etags.enabled requires buffered responses; disable render.streaming"))
	}
	if c.ETags.Strong && !c.ETags.Enabled {
		errs = append(errs, fmt.Errorf("etags.strong requires etags.enabled"))
	}

	if c.Theme.Variant != "" && c.Theme.Manifest == "" {
		errs = append(errs, fmt.Errorf("theme.variant requires theme.manifest"))
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, fmt.Errorf("server.addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be > 0, got %s", c.Server.ShutdownTimeout))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with \"/\", got %q", c.Metrics.Path))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

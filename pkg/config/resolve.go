package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// FallbackDatabaseFile is the file name of the local database used when no
// database URL is configured.
const FallbackDatabaseFile = "mealbuddy.db"

// SQLiteScheme prefixes file-backed database URLs.
const SQLiteScheme = "sqlite://"

// ConfigurationError reports a base configuration that is unreadable, malformed
// or structurally invalid. It is always fatal at boot.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Resolve produces the runtime configuration from a base configuration. The base is
// not modified. After a successful call:
//   - Server.InstancePath is absolute and the directory exists,
//   - Database.URL is non-empty (a sqlite file inside the instance path when unset),
//   - Database.TraceStatements is non-nil.
//
// An explicitly configured database URL or trace flag is never overridden.
func Resolve(base *Config) (*Config, error) {
	if base == nil {
		return nil, &ConfigurationError{Err: errors.New("no configuration provided")}
	}
	if err := base.Validate(); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("invalid configuration: %w", err)}
	}

	cfg := base.clone()

	instance, err := filepath.Abs(cfg.Server.InstancePath)
	if err != nil {
		return nil, &ConfigurationError{Source: "server.instance_path", Err: err}
	}
	if err := os.MkdirAll(instance, 0o755); err != nil {
		return nil, &ConfigurationError{Source: "server.instance_path", Err: fmt.Errorf("failed to create instance directory: %w", err)}
	}
	cfg.Server.InstancePath = instance

	if cfg.Database.URL == "" {
		cfg.Database.URL = FallbackDatabaseURL(instance)
	}

	if cfg.Database.TraceStatements == nil {
		off := false
		cfg.Database.TraceStatements = &off
	}

	return cfg, nil
}

// FallbackDatabaseURL returns the local database URL for an instance directory.
func FallbackDatabaseURL(instancePath string) string {
	return SQLiteScheme + filepath.Join(instancePath, FallbackDatabaseFile)
}

// UploadPath returns the upload directory derived from the instance path and the
// configured folder name. Absolute folder names are used as is.
func (c *Config) UploadPath() string {
	if filepath.IsAbs(c.Upload.Folder) {
		return filepath.Clean(c.Upload.Folder)
	}
	return filepath.Join(c.Server.InstancePath, c.Upload.Folder)
}

// Tracing reports whether SQL statement tracing is enabled.
func (c *DatabaseConfig) Tracing() bool {
	return c.TraceStatements != nil && *c.TraceStatements
}

func (c *Config) clone() *Config {
	out := *c
	out.Upload.AllowedExtensions = slices.Clone(c.Upload.AllowedExtensions)
	out.CORS.AllowedOrigins = slices.Clone(c.CORS.AllowedOrigins)
	out.CORS.AllowedMethods = slices.Clone(c.CORS.AllowedMethods)
	out.CORS.AllowedHeaders = slices.Clone(c.CORS.AllowedHeaders)
	out.CORS.ExposedHeaders = slices.Clone(c.CORS.ExposedHeaders)
	if c.Database.TraceStatements != nil {
		v := *c.Database.TraceStatements
		out.Database.TraceStatements = &v
	}
	return &out
}

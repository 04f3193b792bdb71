package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/mealbuddy-backend/pkg/logging"
)

// EnvPrefix is the prefix of every environment variable read by Load.
// Each variable can also be given without the prefix and section (DATABASE_URL, PORT, ...).
const EnvPrefix = "MEALBUDDY"

// DefaultSecret is the JWT secret used when none is configured. It is fine for local
// development only and a warning is logged at boot when it is in use.
const DefaultSecret = "mealbuddy-dev-secret-change-me"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Database  DatabaseConfig      `yaml:"database" envconfig:"DATABASE"`
	Upload    UploadConfig        `yaml:"upload" envconfig:"UPLOAD"`
	Logging   logging.Config      `yaml:"logging" envconfig:"LOGGING"`
	JWT       JWTConfig           `yaml:"jwt" envconfig:"JWT"`
	CORS      CORSConfig          `yaml:"cors" envconfig:"CORS"`
	Realtime  RealtimeConfig      `yaml:"realtime" envconfig:"REALTIME"`
	RateLimit AuthRateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Metrics   MetricsConfig       `yaml:"metrics" envconfig:"METRICS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host  string `yaml:"host" envconfig:"HOST"`
	Port  int    `yaml:"port" envconfig:"PORT"`
	Debug bool   `yaml:"debug" envconfig:"DEBUG"`
	// InstancePath is the instance-local storage area holding the fallback
	// database and the upload folder.
	InstancePath string `yaml:"instance_path" envconfig:"INSTANCE_PATH"`
	// ServiceName is reported by the health endpoint.
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
}

// DatabaseConfig contains persistence configuration.
type DatabaseConfig struct {
	// URL selects the backend by scheme: sqlite://, postgres://, mongodb://.
	// Empty means "use the local file-backed database" (see Resolve).
	URL string `yaml:"url" envconfig:"DATABASE_URL"`
	// Name is the database name for MongoDB URLs without a path.
	Name string `yaml:"name" envconfig:"DATABASE_NAME"`
	// TraceStatements logs every SQL statement at debug level. Resolve sets it to
	// false when unset.
	TraceStatements *bool `yaml:"trace_statements" envconfig:"DATABASE_TRACE_STATEMENTS"`
	// PingOnBind makes persistence binding fail when the database is unreachable.
	PingOnBind      bool `yaml:"ping_on_bind" envconfig:"DATABASE_PING_ON_BIND"`
	MaxOpenConns    int  `yaml:"max_open_conns" envconfig:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int  `yaml:"max_idle_conns" envconfig:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int  `yaml:"conn_max_lifetime" envconfig:"DATABASE_CONN_MAX_LIFETIME"` // seconds
	Timeout         int  `yaml:"timeout" envconfig:"DATABASE_TIMEOUT"`                     // seconds
}

// UploadConfig contains file upload configuration
type UploadConfig struct {
	// Folder is relative to Server.InstancePath.
	Folder            string   `yaml:"folder" envconfig:"UPLOAD_FOLDER"`
	MaxSizeMB         int      `yaml:"max_size_mb" envconfig:"UPLOAD_MAX_SIZE_MB"`
	AllowedExtensions []string `yaml:"allowed_extensions" envconfig:"UPLOAD_ALLOWED_EXTENSIONS"`
}

// JWTConfig contains JWT configuration
type JWTConfig struct {
	Secret      string `yaml:"secret" envconfig:"JWT_SECRET_KEY"`
	ExpiryHours int    `yaml:"expiry_hours" envconfig:"JWT_EXPIRY_HOURS"`
	Issuer      string `yaml:"issuer" envconfig:"JWT_ISSUER"`
	// BlacklistCleanupSeconds is the interval for purging expired revoked tokens.
	BlacklistCleanupSeconds int `yaml:"blacklist_cleanup_seconds" envconfig:"JWT_BLACKLIST_CLEANUP_SECONDS"`
}

// CORSConfig contains the cross-origin policy shared by the HTTP filter and the
// realtime transport.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" envconfig:"CORS_ORIGINS"`
	AllowedMethods   []string `yaml:"allowed_methods" envconfig:"CORS_METHODS"`
	AllowedHeaders   []string `yaml:"allowed_headers" envconfig:"CORS_HEADERS"`
	ExposedHeaders   []string `yaml:"exposed_headers" envconfig:"CORS_EXPOSED_HEADERS"`
	AllowCredentials bool     `yaml:"allow_credentials" envconfig:"CORS_ALLOW_CREDENTIALS"`
	MaxAge           int      `yaml:"max_age" envconfig:"CORS_MAX_AGE"` // seconds
}

// RealtimeConfig contains WebSocket transport configuration
type RealtimeConfig struct {
	Path string `yaml:"path" envconfig:"REALTIME_PATH"`
	// AsyncMode is "eventloop" or "threaded".
	AsyncMode string `yaml:"async_mode" envconfig:"REALTIME_ASYNC_MODE"`
	// MessageQueue is an optional redis:// URL used to fan out broadcasts
	// between several server processes.
	MessageQueue    string `yaml:"message_queue" envconfig:"REALTIME_MESSAGE_QUEUE"`
	Channel         string `yaml:"channel" envconfig:"REALTIME_CHANNEL"`
	PingSeconds     int    `yaml:"ping_seconds" envconfig:"REALTIME_PING_SECONDS"`
	PongWaitSeconds int    `yaml:"pong_wait_seconds" envconfig:"REALTIME_PONG_WAIT_SECONDS"`
	MaxMessageBytes int64  `yaml:"max_message_bytes" envconfig:"REALTIME_MAX_MESSAGE_BYTES"`
	SendBuffer      int    `yaml:"send_buffer" envconfig:"REALTIME_SEND_BUFFER"`
}

// AuthRateLimitConfig configures rate limiting on login and registration.
type AuthRateLimitConfig struct {
	Enabled        bool `yaml:"enabled" envconfig:"AUTH_RATE_LIMIT_ENABLED"`
	MaxAttempts    int  `yaml:"max_attempts" envconfig:"AUTH_RATE_LIMIT_MAX_ATTEMPTS"`
	WindowSeconds  int  `yaml:"window_seconds" envconfig:"AUTH_RATE_LIMIT_WINDOW_SECONDS"`
	LockoutSeconds int  `yaml:"lockout_seconds" envconfig:"AUTH_RATE_LIMIT_LOCKOUT_SECONDS"`
}

// SetDefaults fills zero values with defaults
func (c *AuthRateLimitConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.LockoutSeconds <= 0 {
		c.LockoutSeconds = 300
	}
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
	Path    string `yaml:"path" envconfig:"METRICS_PATH"`
}

// Load loads configuration from defaults, a .env file, a YAML file and environment
// variables, in increasing order of priority. The result is the base configuration;
// call Resolve to apply fallbacks.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	// .env only fills variables that are not already set in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigurationError{Source: ".env", Err: err}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, &ConfigurationError{Source: configFile, Err: fmt.Errorf("failed to read config file: %w", err)}
			}
			// File doesn't exist, that's ok - defaults and env vars apply
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigurationError{Source: configFile, Err: fmt.Errorf("failed to parse config file: %w", err)}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, &ConfigurationError{Source: "environment", Err: err}
	}

	return cfg, nil
}

// Default returns the static default configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			InstancePath: "instance",
			ServiceName:  "MealBuddy API",
		},
		Database: DatabaseConfig{
			Name:    "mealbuddy",
			Timeout: 10,
		},
		Upload: UploadConfig{
			Folder:            "uploads",
			MaxSizeMB:         16,
			AllowedExtensions: []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".pdf"},
		},
		Logging: logging.DefaultConfig(),
		JWT: JWTConfig{
			Secret:                  DefaultSecret,
			ExpiryHours:             24,
			Issuer:                  "mealbuddy-backend",
			BlacklistCleanupSeconds: 300,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Origin", "Accept"},
			MaxAge:         12 * 60 * 60,
		},
		Realtime: RealtimeConfig{
			Path:            "/ws",
			AsyncMode:       "eventloop",
			Channel:         "mealbuddy:realtime",
			PingSeconds:     25,
			PongWaitSeconds: 60,
			MaxMessageBytes: 64 * 1024,
			SendBuffer:      64,
		},
		RateLimit: AuthRateLimitConfig{
			Enabled:        true,
			MaxAttempts:    10,
			WindowSeconds:  60,
			LockoutSeconds: 300,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.InstancePath == "" {
		return fmt.Errorf("instance_path is required")
	}

	if c.Upload.Folder == "" {
		return fmt.Errorf("upload folder is required")
	}

	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("invalid upload max size: %d", c.Upload.MaxSizeMB)
	}

	if c.JWT.ExpiryHours < 0 {
		return fmt.Errorf("invalid jwt expiry: %d", c.JWT.ExpiryHours)
	}

	if c.Realtime.Path == "" || c.Realtime.Path[0] != '/' {
		return fmt.Errorf("realtime path must start with '/': %q", c.Realtime.Path)
	}

	if err := c.Logging.Validate(); err != nil {
		return err
	}

	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

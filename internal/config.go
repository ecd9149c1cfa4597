package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/waypoint/internal/reconcile"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Data   DataConfig        `yaml:"data"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Collab CollabConfig      `yaml:"collab"`
	Client ClientConfig      `yaml:"client"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Data, &c.SQLite, &c.Auth, &c.Collab, &c.Client} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// DataConfig holds the directory of trip documents.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CollabConfig tunes the server-side notification hub.
type CollabConfig struct {
	// ListThrottle bounds how often list-level "trips.changed" events go out.
	ListThrottle time.Duration `yaml:"list_throttle"`
	// CacheSize is the number of decoded trips the service keeps in memory.
	CacheSize int `yaml:"cache_size"`
}

// Validate validates the collaboration configuration.
func (c *CollabConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ListThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// ClientConfig configures the show and watch commands.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`
	Timeout        time.Duration `yaml:"timeout"`
	ReorderFailure string        `yaml:"reorder_failure"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	if c.ReorderFailure == "" {
		c.ReorderFailure = reconcile.ReorderRefetch
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ReorderFailure, validation.In(reconcile.ReorderIgnore, reconcile.ReorderRefetch)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Data: DataConfig{
			Path: "./trips",
		},
		SQLite: SQLiteConfig{
			Path: "./waypoint.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Collab: CollabConfig{
			ListThrottle: 2 * time.Second,
			CacheSize:    128,
		},
		Client: ClientConfig{
			BaseURL:        "http://localhost:8080/api",
			Timeout:        30 * time.Second,
			ReorderFailure: reconcile.ReorderRefetch,
		},
	}
}

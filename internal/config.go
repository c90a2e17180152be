package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/liflux/liflux/internal/store"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store backends.
const (
	BackendDocument = "document"
	BackendKV       = "kv"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	Search SearchConfig      `yaml:"search"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and configures the note store backend.
//
// Backend is either "document" (one Markdown file per note under
// <root>/notes) or "kv" (SQLite-backed key-value records). Both share the
// managed media directory under <root>/media.
type StoreConfig struct {
	Backend      string       `yaml:"backend"`
	Root         string       `yaml:"root"`
	SQLite       SQLiteConfig `yaml:"sqlite"`
	DeletePolicy string       `yaml:"delete_policy"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendDocument, BackendKV)),
		validation.Field(&c.Root, validation.Required),
	); err != nil {
		return err
	}
	if c.DeletePolicy != "" && !store.DeletePolicy(c.DeletePolicy).Valid() {
		return fmt.Errorf("store: unknown delete_policy %q", c.DeletePolicy)
	}
	if c.Backend == BackendKV {
		return c.SQLite.Validate()
	}
	return nil
}

// Policy returns the configured delete policy, falling back to the
// backend's default when unset.
func (c *StoreConfig) Policy() store.DeletePolicy {
	if c.DeletePolicy != "" {
		return store.DeletePolicy(c.DeletePolicy)
	}
	if c.Backend == BackendKV {
		return store.PolicyHard
	}
	return store.PolicyTrash
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

// SearchConfig holds search engine configuration.
type SearchConfig struct {
	MaxResults int `yaml:"max_results"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxResults, validation.Min(0)),
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Backend: BackendDocument,
			Root:    "./data",
			SQLite: SQLiteConfig{
				Path: "./liflux.db",
			},
		},
		Search: SearchConfig{
			MaxResults: 50,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

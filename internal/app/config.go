package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/cardboard/internal/tokenstore"
	"github.com/florianilch/cardboard/tokenmanager"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TelemetryExporter selects where OpenTelemetry log records are sent.
type TelemetryExporter string

const (
	TelemetryExporterNone     TelemetryExporter = "none"
	TelemetryExporterStdout   TelemetryExporter = "stdout"
	TelemetryExporterOTLPHTTP TelemetryExporter = "otlp-http"
	TelemetryExporterOTLPGRPC TelemetryExporter = "otlp-grpc"
)

// TokenStorageType represents the different storage types supported for the session.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigTelemetryExporter = TelemetryExporterNone
	DefaultConfigAPIBaseURL        = tokenmanager.DefaultBaseURL
	DefaultConfigAPITimeout        = 30 * time.Second
	DefaultConfigLoginTimeout      = 5 * time.Minute
	DefaultConfigCallbackHost      = "127.0.0.1"
	DefaultConfigCallbackPort      = 8765
	DefaultConfigCallbackPath      = "/callback"
	DefaultConfigRefreshLeeway     = time.Minute
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigStorageType       = TokenStorageTypeFile
)

// TelemetryConfig holds OpenTelemetry log export settings. OTLP endpoints
// are configured through the standard OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Exporter TelemetryExporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
}

// ClientConfig holds the OAuth client credentials issued by Cardboard.
// They are checked when a token operation first needs them.
type ClientConfig struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// APIConfig holds token endpoint settings.
type APIConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// CallbackConfig describes the local listener that receives the
// authorization redirect.
type CallbackConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
	Path string `json:"path" validate:"startswith=/"`
}

// LoginConfig holds settings for the interactive login flow.
type LoginConfig struct {
	// URL is the application's authorization page.
	URL string `json:"url" validate:"omitempty,url"`
	// RedirectURL overrides the redirect derived from Callback. It must match
	// the redirect registered for the application.
	RedirectURL string         `json:"redirect_url" validate:"omitempty,url"`
	Timeout     time.Duration  `json:"timeout" validate:"gte=0"`
	Callback    CallbackConfig `json:"callback"`
}

// Address returns the callback listen address.
func (l LoginConfig) Address() string {
	return net.JoinHostPort(l.Callback.Host, strconv.FormatUint(uint64(l.Callback.Port), 10))
}

// Redirect returns the redirect URI sent with the authorization request.
func (l LoginConfig) Redirect() string {
	if l.RedirectURL != "" {
		return l.RedirectURL
	}
	return (&url.URL{Scheme: "http", Host: l.Address(), Path: l.Callback.Path}).String()
}

// SessionConfig controls when stored access tokens are refreshed.
type SessionConfig struct {
	// RefreshLeeway refreshes access tokens this long before they expire.
	RefreshLeeway time.Duration `json:"refresh_leeway" validate:"gte=0"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown of the callback listener.
	Timeout time.Duration `json:"timeout"`
}

// StorageConfig describes where the session is persisted.
type StorageConfig struct {
	Type TokenStorageType `json:"type" validate:"required,oneof=file env keyring"`

	// Backend-specific settings (mutually exclusive based on Type)
	File        string `json:"file,omitempty"`         // For file storage: path to session file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: variable name, must not carry the CARDBOARD_ prefix
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewStore creates a tokenstore.Store from the storage configuration.
func (s *StorageConfig) NewStore() (tokenstore.Store, error) {
	switch s.Type {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(s.File)
	case TokenStorageTypeEnv:
		return tokenstore.NewEnvStore(s.EnvKey)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(tokenstore.KeyringService, s.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Type)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Client    ClientConfig    `json:"client"`
	API       APIConfig       `json:"api"`
	Login     LoginConfig     `json:"login"`
	Session   SessionConfig   `json:"session"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Storage   StorageConfig   `json:"storage"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.Login.Timeout == 0 {
		c.Login.Timeout = DefaultConfigLoginTimeout
	}
	if c.Login.Callback.Host == "" {
		c.Login.Callback.Host = DefaultConfigCallbackHost
	}
	if c.Login.Callback.Port == 0 {
		c.Login.Callback.Port = DefaultConfigCallbackPort
	}
	if c.Login.Callback.Path == "" {
		c.Login.Callback.Path = DefaultConfigCallbackPath
	}
	if c.Session.RefreshLeeway == 0 {
		c.Session.RefreshLeeway = DefaultConfigRefreshLeeway
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultConfigStorageType
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.file required (auto-detect failed: %w)", err)
			}
			c.Storage.File = filepath.Join(configDir, "cardboard", "session.json")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("storage.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Storage.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Storage.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// Credentials returns the configured client credentials.
func (c *Config) Credentials() tokenmanager.Credentials {
	return tokenmanager.Credentials{
		ClientID:     c.Client.ID,
		ClientSecret: c.Client.Secret,
	}
}

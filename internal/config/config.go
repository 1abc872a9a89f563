package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "LOOMIN"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "loomin.db"
	defaultLogLevel      = "info"
	defaultCookieName    = "loomin_session"
	defaultTokenTTLHours = 24
	defaultUploadDir     = "uploads"
	defaultRealtimeMode  = "strict"
)

// RealtimeAuthMode selects how the websocket handshake authenticates.
type RealtimeAuthMode string

const (
	// RealtimeAuthStrict requires a valid session token on the handshake.
	RealtimeAuthStrict RealtimeAuthMode = "strict"
	// RealtimeAuthPermissive admits a bare userId query parameter.
	RealtimeAuthPermissive RealtimeAuthMode = "permissive"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	SigningSecret    string
	SessionCookie    string
	TokenTTLHours    int
	DatabasePath     string
	UploadDir        string
	LogLevel         string
	AllowedOrigins   []string
	RealtimeAuthMode RealtimeAuthMode
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{"*"})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("uploads.dir", defaultUploadDir)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.token_ttl_hours", defaultTokenTTLHours)
	configViper.SetDefault("realtime.auth_mode", defaultRealtimeMode)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		SessionCookie:    configViper.GetString("auth.cookie_name"),
		TokenTTLHours:    configViper.GetInt("auth.token_ttl_hours"),
		DatabasePath:     configViper.GetString("database.path"),
		UploadDir:        configViper.GetString("uploads.dir"),
		LogLevel:         configViper.GetString("log.level"),
		AllowedOrigins:   configViper.GetStringSlice("http.allowed_origins"),
		RealtimeAuthMode: RealtimeAuthMode(strings.ToLower(strings.TrimSpace(configViper.GetString("realtime.auth_mode")))),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("auth.token_ttl_hours must be positive")
	}
	switch c.RealtimeAuthMode {
	case RealtimeAuthStrict, RealtimeAuthPermissive:
	default:
		return fmt.Errorf("realtime.auth_mode must be %q or %q", RealtimeAuthStrict, RealtimeAuthPermissive)
	}
	return nil
}

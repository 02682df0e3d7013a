// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (rate limiting, health checks)
	RedisURL string `koanf:"redis_url"`

	// JWT Authentication. JWTSecretPrevious is set only during a secret
	// rotation window so tokens signed with the old secret stay valid.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTSecretPrevious string `koanf:"jwt_secret_previous"`

	// Payment gateway account
	GatewayID             string `koanf:"gateway_id"`
	GatewayLoginID        string `koanf:"gateway_login_id"`
	GatewayTransactionKey string `koanf:"gateway_transaction_key"`
	GatewayAPIURL         string `koanf:"gateway_api_url"`

	// TransactionMode selects "authorize" (auth only, capture later) or
	// "purchase" (auth and capture in one call).
	TransactionMode string `koanf:"transaction_mode"`

	// StoredProfilesEnabled gates saving charged cards as reusable tokens.
	// Requires customer profile support on the gateway account.
	StoredProfilesEnabled bool `koanf:"stored_profiles_enabled"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL           = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret             = errors.New("JWT_SECRET is required")
	ErrMissingGatewayLoginID        = errors.New("GATEWAY_LOGIN_ID is required")
	ErrMissingGatewayTransactionKey = errors.New("GATEWAY_TRANSACTION_KEY is required")
	ErrMissingGatewayAPIURL         = errors.New("GATEWAY_API_URL is required")
	ErrInvalidTransactionMode       = errors.New("TRANSACTION_MODE must be \"authorize\" or \"purchase\"")
	ErrInvalidPort                  = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultGatewayID       = "authnet"
	DefaultTransactionMode = "purchase"
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try BACKPAY_PORT first, then PORT for backward compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"BACKPAY_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	// Parse the stored-profiles flag from env with default
	storedProfiles := false
	if k.Exists("stored_profiles_enabled") {
		storedProfiles = k.Bool("stored_profiles_enabled")
	}
	if val := os.Getenv("STORED_PROFILES_ENABLED"); val != "" {
		// Env var takes precedence over file config
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			storedProfiles = true
		case "false", "0", "no", "off":
			storedProfiles = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefaultMulti([]string{"BACKPAY_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:              getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:             getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTSecretPrevious:     getEnvOrKoanf("JWT_SECRET_PREVIOUS", k, "jwt_secret_previous"),
		GatewayID:             getEnvOrDefault("GATEWAY_ID", k.String("gateway_id"), DefaultGatewayID),
		GatewayLoginID:        getEnvOrKoanf("GATEWAY_LOGIN_ID", k, "gateway_login_id"),
		GatewayTransactionKey: getEnvOrKoanf("GATEWAY_TRANSACTION_KEY", k, "gateway_transaction_key"),
		GatewayAPIURL:         getEnvOrKoanf("GATEWAY_API_URL", k, "gateway_api_url"),
		TransactionMode:       getEnvOrDefault("TRANSACTION_MODE", k.String("transaction_mode"), DefaultTransactionMode),
		StoredProfilesEnabled: storedProfiles,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
// Note: A port value of 0 from a YAML file will fall back to the default; port 0 is not supported in YAML files.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// GetJWTSecrets returns the current and previous JWT secrets. The previous
// secret is empty outside a rotation window.
func (c *Config) GetJWTSecrets() (current, previous string) {
	return c.JWTSecret, c.JWTSecretPrevious
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.GatewayLoginID == "" {
		errs = append(errs, ErrMissingGatewayLoginID)
	}
	if c.GatewayTransactionKey == "" {
		errs = append(errs, ErrMissingGatewayTransactionKey)
	}
	if c.GatewayAPIURL == "" {
		errs = append(errs, ErrMissingGatewayAPIURL)
	}
	if c.TransactionMode != "authorize" && c.TransactionMode != "purchase" {
		errs = append(errs, ErrInvalidTransactionMode)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"database_url":            maskDatabaseURL(c.DatabaseURL),
		"redis_url":               maskDatabaseURL(c.RedisURL),
		"jwt_secret":              maskSecret(c.JWTSecret),
		"jwt_secret_previous":     maskSecret(c.JWTSecretPrevious),
		"gateway_id":              c.GatewayID,
		"gateway_login_id":        maskSecret(c.GatewayLoginID),
		"gateway_transaction_key": maskSecret(c.GatewayTransactionKey),
		"gateway_api_url":         c.GatewayAPIURL,
		"transaction_mode":        c.TransactionMode,
		"stored_profiles_enabled": fmt.Sprintf("%t", c.StoredProfilesEnabled),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a URL with userinfo credentials.
// Supports postgres://, postgresql://, and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}

// Package config loads the RepairLoader server configuration from the
// environment, after merging .env.local and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendGorm      = "gorm"
	BackendFS        = "fs"
	BackendDatastore = "datastore"
)

// Config holds the application configuration
type Config struct {
	// Database connection string: a SQLite path or a Postgres DSN
	DatabaseURL string

	// Which IdentityStore implementation to use: gorm, fs or datastore
	StoreBackend string

	// Root directory of the file backed store
	FSStorePath string

	// Cloud Datastore project and namespace
	DatastoreProject   string
	DatastoreNamespace string

	// HTTP bind address (host:port)
	ServerAddr string

	// gRPC bind address, empty disables the gRPC server
	GRPCAddr string

	// Public URL of the site, used for OAuth callbacks and magic links
	BaseURL string

	// Secret for signing session tokens
	AuthSecret string

	SessionMaxAge time.Duration

	GitHub OAuthClient
	Google OAuthClient

	// Resend credentials; an empty key logs magic links to the console instead
	ResendAPIKey string
	EmailFrom    string

	LogLevel  string
	LogFormat string
	Debug     bool
}

// OAuthClient holds one OAuth app registration
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// Enabled is true once both halves of the registration are set
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// EnvFiles are loaded in order.  Values already in the environment, or set by
// an earlier file, win.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles merges the env files that exist into the process environment
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with fallback defaults.
// It does not validate: callers apply their overrides first, then call Validate.
func Load() (*Config, error) {
	if err := LoadEnvFiles(EnvFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "./data/siteauth.db"),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendGorm)),
		FSStorePath:        getEnv("FS_STORE_PATH", "./data/identities"),
		DatastoreProject:   getEnv("DATASTORE_PROJECT", ""),
		DatastoreNamespace: getEnv("DATASTORE_NAMESPACE", ""),
		ServerAddr:         getEnv("SERVER_ADDR", "localhost:8080"),
		GRPCAddr:           getEnv("GRPC_ADDR", ""),
		BaseURL:            strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		AuthSecret:         getEnv("AUTH_SECRET", ""),
		SessionMaxAge:      time.Duration(getEnvInt("SESSION_MAX_AGE_HOURS", 30*24)) * time.Hour,
		GitHub: OAuthClient{
			ClientID:     getEnv("GITHUB_ID", ""),
			ClientSecret: getEnv("GITHUB_SECRET", ""),
		},
		Google: OAuthClient{
			ClientID:     getEnv("GOOGLE_ID", ""),
			ClientSecret: getEnv("GOOGLE_SECRET", ""),
		},
		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "RepairLoader <noreply@repairloader.com>"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Debug:        getEnvBool("DEBUG", false),
	}
	return cfg, nil
}

// Validate checks the settings each backend needs
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendGorm:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the gorm store")
		}
	case BackendFS:
		if c.FSStorePath == "" {
			return fmt.Errorf("FS_STORE_PATH is required for the fs store")
		}
	case BackendDatastore:
		if c.DatastoreProject == "" {
			return fmt.Errorf("DATASTORE_PROJECT is required for the datastore store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want gorm, fs or datastore)", c.StoreBackend)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_HOURS must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

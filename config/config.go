package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Bootstrap     BootstrapConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string // "postgres" (lib/pq), "pgx" (jackc/pgx stdlib) or "memory"
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// AuthConfig holds token issuance settings
type AuthConfig struct {
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	PrivateKeyPath  string
	PrivateKeyPEM   string
	KeyID           string
	// JWKSURL switches request authentication to a remote key set, for
	// deployments that verify tokens minted by another instance.
	JWKSURL    string
	BcryptCost int
	// Expired refresh tokens are deleted every PurgeInterval once they are
	// older than PurgeRetention. A zero interval disables purging.
	PurgeInterval  time.Duration
	PurgeRetention time.Duration
}

// RateLimitConfig bounds credential endpoints per client IP
type RateLimitConfig struct {
	Enabled   bool
	PerMinute int
	Burst     int
}

// AuditConfig sizes the async audit writer
type AuditConfig struct {
	Workers    int
	BufferSize int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// BootstrapConfig seeds a superadmin on start when the email is set and
// no principal with that email exists
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Enabled reports whether a bootstrap superadmin is configured
func (b BootstrapConfig) Enabled() bool {
	return b.AdminEmail != ""
}

// MaxAccessTokenTTL is the upper bound accepted for access token lifetime.
const MaxAccessTokenTTL = time.Hour

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),

			TrustProxyHeaders: getEnvAsBool("SERVER_TRUST_PROXY_HEADERS", false),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			Issuer:          getEnv("AUTH_ISSUER", "faculty-auth"),
			Audience:        getEnv("AUTH_AUDIENCE", "faculty-platform"),
			AccessTokenTTL:  time.Duration(getEnvAsInt("AUTH_ACCESS_TOKEN_MINUTES", 15)) * time.Minute,
			RefreshTokenTTL: time.Duration(getEnvAsInt("AUTH_REFRESH_TOKEN_DAYS", 7)) * 24 * time.Hour,
			PrivateKeyPath:  getEnv("AUTH_PRIVATE_KEY_PATH", ""),
			PrivateKeyPEM:   getEnv("AUTH_PRIVATE_KEY_PEM", ""),
			KeyID:           getEnv("AUTH_KEY_ID", ""),
			JWKSURL:         getEnv("AUTH_JWKS_URL", ""),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 12),
			PurgeInterval:   getEnvAsDuration("AUTH_REFRESH_PURGE_INTERVAL", time.Hour),
			PurgeRetention:  getEnvAsDuration("AUTH_REFRESH_PURGE_RETENTION", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getEnvAsBool("AUTH_RATE_LIMIT_ENABLED", true),
			PerMinute: getEnvAsInt("AUTH_RATE_LIMIT_PER_MINUTE", 20),
			Burst:     getEnvAsInt("AUTH_RATE_LIMIT_BURST", 5),
		},
		Audit: AuditConfig{
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 256),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
			AdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Platform Administrator"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx":
		if err := c.Database.validateConnection(); err != nil {
			return err
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("the memory database driver is not allowed in production")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Auth.Issuer == "" {
		return fmt.Errorf("auth issuer is required")
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth audience is required")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.AccessTokenTTL > MaxAccessTokenTTL {
		return fmt.Errorf("access token lifetime must be between 1 and %d minutes", int(MaxAccessTokenTTL.Minutes()))
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("refresh token lifetime must be positive")
	}
	keyConfigured := c.Auth.PrivateKeyPath != "" || c.Auth.PrivateKeyPEM != ""
	if c.IsProduction() && !keyConfigured {
		return fmt.Errorf("signing key is required in production: set AUTH_PRIVATE_KEY_PATH or AUTH_PRIVATE_KEY_PEM")
	}
	// Tokens issued here are checked against the remote set, so it must
	// publish this instance's key under a stable kid.
	if c.Auth.JWKSURL != "" && (!keyConfigured || c.Auth.KeyID == "") {
		return fmt.Errorf("AUTH_JWKS_URL requires a configured signing key and AUTH_KEY_ID published in that key set")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}
	if c.Auth.PurgeInterval < 0 || c.Auth.PurgeRetention < 0 {
		return fmt.Errorf("refresh token purge settings must not be negative")
	}

	if c.Bootstrap.Enabled() && len(c.Bootstrap.AdminPassword) < 12 {
		return fmt.Errorf("bootstrap admin password must be at least 12 characters")
	}

	if c.RateLimit.Enabled && (c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit per minute and burst must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

func (c *DatabaseConfig) validateConnection() error {
	if c.ConnectionString != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "postgres"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "faculty")
	cfg.Password = getEnv("DB_PASSWORD", "faculty")
	cfg.Database = getEnv("DB_NAME", "faculty_auth")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

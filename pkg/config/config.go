package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/joho/godotenv"
)

// Config is passed explicitly into every constructor. Nothing reads the
// environment after Load returns.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	OAuth    OAuthConfig
	Geo      GeoConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	CORSOrigins string
	BodyLimit   int
	Debug       bool
}

// IsDevelopment reports whether the server runs in a development environment
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development" || s.Environment == "dev"
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders a lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	AccessSecret       string
	RefreshSecret      string
	Issuer             string
	AccessTokenTTL     time.Duration
	RootAccessTokenTTL time.Duration
	RefreshTokenTTL    time.Duration
	RotateRefreshToken bool
	BcryptCost         int

	SessionCookieName string
	RefreshCookieName string
	CookieMaxAge      time.Duration
	SecureCookies     bool

	LoginRateLimit  int
	LoginRateWindow time.Duration

	// DevBypass enables the bootstrap credential. It is only honored in
	// binaries built with the dev tag and only for loopback requests.
	DevBypass         bool
	BootstrapUsername string
	BootstrapPassword string
}

type OAuthConfig struct {
	CodeTTL                     time.Duration
	CodeStore                   string // postgres | redis | memory
	DefaultAccessTokenLifetime  time.Duration
	DefaultRefreshTokenLifetime time.Duration
	CleanupInterval             time.Duration
}

type GeoConfig struct {
	Enabled     bool
	URLTemplate string // %s is replaced by the IP
	Timeout     time.Duration
	MaxRetries  int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

var ErrRegistry = errx.NewRegistry("CONFIG")

var CodeInvalidConfig = ErrRegistry.Register("INVALID", errx.TypeValidation, 500, "Invalid configuration")

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: env,
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			BodyLimit:   getEnvInt("BODY_LIMIT", 1024*1024),
			Debug:       getEnvBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "sentinel"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			AccessSecret:       getEnv("AUTH_ACCESS_SECRET", ""),
			RefreshSecret:      getEnv("AUTH_REFRESH_SECRET", ""),
			Issuer:             getEnv("AUTH_ISSUER", "sentinel"),
			AccessTokenTTL:     getEnvDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
			RootAccessTokenTTL: getEnvDuration("AUTH_ROOT_ACCESS_TOKEN_TTL", 12*time.Hour),
			RefreshTokenTTL:    getEnvDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour),
			RotateRefreshToken: getEnvBool("AUTH_ROTATE_REFRESH_TOKENS", false),
			BcryptCost:         getEnvInt("AUTH_BCRYPT_COST", 12),
			SessionCookieName:  getEnv("AUTH_SESSION_COOKIE", "sid"),
			RefreshCookieName:  getEnv("AUTH_REFRESH_COOKIE", "refresh_token"),
			CookieMaxAge:       getEnvDuration("AUTH_COOKIE_MAX_AGE", 7*24*time.Hour),
			SecureCookies:      env != "development" && env != "dev",
			LoginRateLimit:     getEnvInt("AUTH_LOGIN_RATE_LIMIT", 10),
			LoginRateWindow:    getEnvDuration("AUTH_LOGIN_RATE_WINDOW", time.Minute),
			DevBypass:          getEnvBool("AUTH_DEV_BYPASS", false),
			BootstrapUsername:  getEnv("AUTH_BOOTSTRAP_USERNAME", ""),
			BootstrapPassword:  getEnv("AUTH_BOOTSTRAP_PASSWORD", ""),
		},
		OAuth: OAuthConfig{
			CodeTTL:                     getEnvDuration("OAUTH_CODE_TTL", 10*time.Minute),
			CodeStore:                   getEnv("OAUTH_CODE_STORE", "postgres"),
			DefaultAccessTokenLifetime:  getEnvDuration("OAUTH_ACCESS_TOKEN_LIFETIME", time.Hour),
			DefaultRefreshTokenLifetime: getEnvDuration("OAUTH_REFRESH_TOKEN_LIFETIME", 30*24*time.Hour),
			CleanupInterval:             getEnvDuration("OAUTH_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Geo: GeoConfig{
			Enabled:     getEnvBool("GEO_ENABLED", false),
			URLTemplate: getEnv("GEO_URL_TEMPLATE", "https://ipapi.co/%s/json/"),
			Timeout:     getEnvDuration("GEO_TIMEOUT", 2*time.Second),
			MaxRetries:  getEnvInt("GEO_MAX_RETRIES", 2),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the auth core cannot run safely with
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return ErrRegistry.NewWithMessage(CodeInvalidConfig, reason).WithDetail("field", field)
	}
	if len(c.Auth.AccessSecret) < 32 {
		return invalid("AUTH_ACCESS_SECRET", "access secret must be at least 32 characters")
	}
	if len(c.Auth.RefreshSecret) < 32 {
		return invalid("AUTH_REFRESH_SECRET", "refresh secret must be at least 32 characters")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RootAccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return invalid("AUTH_*_TTL", "token TTLs must be positive")
	}
	if c.OAuth.CodeTTL <= 0 {
		return invalid("OAUTH_CODE_TTL", "code TTL must be positive")
	}
	switch c.OAuth.CodeStore {
	case "postgres", "redis", "memory":
	default:
		return invalid("OAUTH_CODE_STORE", "code store must be postgres, redis or memory")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Package config provides configuration loading for the auth service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Password hashing schemes accepted by auth.password_scheme.
const (
	PasswordSchemeMD5      = "md5"
	PasswordSchemeBcrypt   = "bcrypt"
	PasswordSchemeArgon2id = "argon2id"
)

// Verification code stores accepted by verification.store.
const (
	CodeStorePostgres = "postgres"
	CodeStoreRedis    = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Verification VerificationConfig `mapstructure:"verification"`
	Mail         MailConfig         `mapstructure:"mail"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment"` // dev, staging, prod
	BasePath       string        `mapstructure:"base_path"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds session token and sign-in configuration.
type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	RememberMeTTL      time.Duration `mapstructure:"remember_me_ttl"`
	GoogleSessionTTL   time.Duration `mapstructure:"google_session_ttl"`
	PasswordScheme     string        `mapstructure:"password_scheme"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleTokenInfoURL string        `mapstructure:"google_tokeninfo_url"`
	ProviderTimeout    time.Duration `mapstructure:"provider_timeout"`
}

// VerificationConfig holds email verification code settings.
type VerificationConfig struct {
	CodeTTL time.Duration `mapstructure:"code_ttl"`
	Store   string        `mapstructure:"store"`
}

// MailConfig holds outbound SMTP settings.
type MailConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	FromName    string        `mapstructure:"from_name"`
	FromAddress string        `mapstructure:"from_address"`
	Subject     string        `mapstructure:"subject"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Sender returns the from address, falling back to the SMTP username.
func (c MailConfig) Sender() string {
	if c.FromAddress != "" {
		return c.FromAddress
	}
	return c.Username
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/authservice")

	v.SetEnvPrefix("AUTHSVC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Auth.PasswordScheme {
	case PasswordSchemeMD5, PasswordSchemeBcrypt, PasswordSchemeArgon2id:
	default:
		return fmt.Errorf("unknown auth.password_scheme %q", c.Auth.PasswordScheme)
	}
	switch c.Verification.Store {
	case CodeStorePostgres:
	case CodeStoreRedis:
		if !c.Redis.Enabled {
			return errors.New("verification.store=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown verification.store %q", c.Verification.Store)
	}
	return nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "authservice")
	v.SetDefault("database.password", "authservice")
	v.SetDefault("database.database", "authservice")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults; jwt_secret has none on purpose
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.remember_me_ttl", "720h")
	v.SetDefault("auth.google_session_ttl", "720h")
	v.SetDefault("auth.password_scheme", PasswordSchemeMD5)
	v.SetDefault("auth.google_tokeninfo_url", "https://www.googleapis.com/oauth2/v3/tokeninfo")
	v.SetDefault("auth.provider_timeout", "10s")

	// Verification defaults
	v.SetDefault("verification.code_ttl", "3m")
	v.SetDefault("verification.store", CodeStorePostgres)

	// Mail defaults
	v.SetDefault("mail.host", "smtp.titan.email")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.from_name", "CRONIS")
	v.SetDefault("mail.from_address", "")
	v.SetDefault("mail.subject", "Código de verificación")
	v.SetDefault("mail.timeout", "15s")
}

// bindEnv binds secrets explicitly, along with the variable names older
// deployments already set.
func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "AUTHSVC_SERVER_PORT", "PORT")

	v.BindEnv("database.host", "AUTHSVC_DATABASE_HOST", "DB_HOST")
	v.BindEnv("database.port", "AUTHSVC_DATABASE_PORT", "DB_PORT")
	v.BindEnv("database.user", "AUTHSVC_DATABASE_USER", "DB_USER")
	v.BindEnv("database.password", "AUTHSVC_DATABASE_PASSWORD", "DB_PASSWORD")
	v.BindEnv("database.database", "AUTHSVC_DATABASE_DATABASE", "DB_DATABASE")

	v.BindEnv("auth.jwt_secret", "AUTHSVC_AUTH_JWT_SECRET", "JWT_SECRET")
	v.BindEnv("auth.google_client_id", "AUTHSVC_AUTH_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")

	v.BindEnv("mail.username", "AUTHSVC_MAIL_USERNAME", "NODE_EMAIL")
	v.BindEnv("mail.password", "AUTHSVC_MAIL_PASSWORD", "NODE_PASSWORD")
}

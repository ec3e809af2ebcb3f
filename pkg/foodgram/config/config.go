// Package config loads foodgram configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete server configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Media      MediaConfig      `koanf:"media"`
	HTTP       HTTPConfig       `koanf:"http"`
	Pagination PaginationConfig `koanf:"pagination"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Mode            string        `koanf:"mode"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	AdminEmail    string        `koanf:"admin_email"`
	AdminUsername string        `koanf:"admin_username"`
	AdminPassword string        `koanf:"admin_password"`
}

type MediaConfig struct {
	// Backend is local or s3.
	Backend  string   `koanf:"backend"`
	Dir      string   `koanf:"dir"`
	BaseURL  string   `koanf:"base_url"`
	MaxBytes int64    `koanf:"max_bytes"`
	S3       S3Config `koanf:"s3"`
}

type S3Config struct {
	Endpoint        string `koanf:"endpoint"`
	Region          string `koanf:"region"`
	Bucket          string `koanf:"bucket"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	UseSSL          bool   `koanf:"use_ssl"`
	PublicURL       string `koanf:"public_url"`
}

type HTTPConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type PaginationConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "FOODGRAM_CONFIG"

// EnvPrefix is stripped from environment variables; "__" separates sections.
const EnvPrefix = "FOODGRAM_"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/foodgram/config.yaml",
}

// legacyEnv maps unprefixed variables kept for existing deployments.
var legacyEnv = map[string]string{
	"PORT":         "server.port",
	"GIN_MODE":     "server.mode",
	"JWT_SECRET":   "auth.jwt_secret",
	"DATABASE_URL": "database.dsn",
	"DB_DRIVER":    "database.driver",
	"LOG_LEVEL":    "log.level",
	"LOG_FORMAT":   "log.format",
}

var sliceConfigPaths = []string{
	"http.cors_origins",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "foodgram.db",
		},
		Auth: AuthConfig{
			TokenTTL:      24 * time.Hour,
			AdminEmail:    "admin@foodgram.local",
			AdminUsername: "admin",
			AdminPassword: "changeme",
		},
		Media: MediaConfig{
			Backend:  "local",
			Dir:      "media",
			BaseURL:  "http://localhost:8080/media",
			MaxBytes: 5 << 20,
			S3: S3Config{
				Region: "us-east-1",
				Bucket: "foodgram",
			},
		},
		HTTP: HTTPConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		Pagination: PaginationConfig{
			DefaultLimit: 6,
			MaxLimit:     100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (if present), then layers defaults, the YAML config file
// and environment variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps FOODGRAM_SERVER__PORT to server.port. Variables that
// are neither prefixed nor legacy are ignored.
func envTransformFunc(key string) string {
	if path, ok := legacyEnv[key]; ok {
		return path
	}
	if !strings.HasPrefix(key, EnvPrefix) || key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

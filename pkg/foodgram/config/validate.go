package config

import (
	"errors"
	"fmt"
)

// Validate checks enumerations and required values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Server.Mode == "release" && c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters"))
	}

	switch c.Media.Backend {
	case "local":
		if c.Media.Dir == "" {
			errs = append(errs, errors.New("media.dir is required for the local backend"))
		}
	case "s3":
		if c.Media.S3.Endpoint == "" || c.Media.S3.Bucket == "" {
			errs = append(errs, errors.New("media.s3.endpoint and media.s3.bucket are required for the s3 backend"))
		}
		if c.Media.S3.AccessKeyID == "" || c.Media.S3.SecretAccessKey == "" {
			errs = append(errs, errors.New("media.s3 credentials are required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("media.backend must be local or s3, got %q", c.Media.Backend))
	}
	if c.Media.MaxBytes <= 0 {
		errs = append(errs, errors.New("media.max_bytes must be positive"))
	}

	if !c.HTTP.RateLimitDisabled && (c.HTTP.RateLimitRequests <= 0 || c.HTTP.RateLimitWindow <= 0) {
		errs = append(errs, errors.New("http rate limit requires positive rate_limit_requests and rate_limit_window"))
	}

	if c.Pagination.DefaultLimit <= 0 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		errs = append(errs, fmt.Errorf("pagination limits invalid: default %d, max %d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

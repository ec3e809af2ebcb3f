// Package media stores uploaded recipe images on the local filesystem or in
// an S3-compatible bucket.
package media

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
)

// Storage saves and deletes objects by key.
type Storage interface {
	// Save stores r under key and returns its public URL.
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the storage backend selected in cfg.
func New(ctx context.Context, cfg config.MediaConfig) (Storage, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStorage(cfg.Dir, cfg.BaseURL)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// RecipeImageKey returns a fresh object key for a recipe image.
func RecipeImageKey(ext string) string {
	return "recipes/images/" + uuid.New().String() + "." + ext
}

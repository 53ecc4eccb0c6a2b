// Package store persists rendered deploy targets between synthesis and
// deployment, locally or in S3 with optional DynamoDB locking. Content is
// transparently encrypted with AES-256-GCM when an encryption key is
// configured in the environment.
package store

import (
	"context"
	"fmt"

	"github.com/backplane-io/backplane/internal/ir"
)

// Store reads and writes deploy targets.
type Store interface {
	// Read loads the most recently written template. A store with no
	// template yet returns nil without error.
	Read(ctx context.Context) (*ir.Template, error)

	// Write persists the template.
	Write(ctx context.Context, tpl *ir.Template) error

	// Lock acquires an exclusive lock on the store.
	Lock(ctx context.Context) error

	// Unlock releases the lock.
	Unlock(ctx context.Context) error
}

// Config selects and configures a store.
type Config struct {
	Type   string            `json:"type"` // "local" or "s3"
	Config map[string]string `json:"config"`
}

// New creates a store from configuration.
func New(cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		path := cfg.Config["path"]
		if path == "" {
			path = DefaultLocalPath
		}
		return NewLocal(path), nil
	case "s3":
		return newS3Store(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

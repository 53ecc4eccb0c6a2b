package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/backplane-io/backplane/internal/ir"
)

// DefaultLocalPath is where the local store keeps the rendered deploy target.
const DefaultLocalPath = ".backplane/template.json"

// Local stores the deploy target on the local filesystem with a sibling lock
// file.
type Local struct {
	path string
}

func NewLocal(path string) *Local {
	return &Local{path: path}
}

// Read loads the template from the configured path. A missing file means no
// template has been written yet.
func (l *Local) Read(ctx context.Context) (*ir.Template, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", l.path, err)
	}

	content, err := Decrypt(raw)
	if err != nil {
		return nil, err
	}
	return ir.ParseTemplate(content)
}

// Write persists the template to the configured path, encrypting when an
// encryption key is configured.
func (l *Local) Write(ctx context.Context, tpl *ir.Template) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	content, err := tpl.RenderJSON()
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(content)
	if err != nil {
		return err
	}

	if err := os.WriteFile(l.path, encrypted, 0644); err != nil {
		return fmt.Errorf("failed to write template file %s: %w", l.path, err)
	}
	return nil
}

// Lock acquires a file lock to prevent concurrent writes.
func (l *Local) Lock(ctx context.Context) error {
	lockPath := l.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil {
		// Locks older than 10 minutes are considered stale.
		if time.Since(info.ModTime()) > 10*time.Minute {
			os.Remove(lockPath)
		} else {
			return fmt.Errorf("store is locked by another process (lock file: %s). "+
				"If this is an error, remove the lock file manually", lockPath)
		}
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Unlock releases the file lock.
func (l *Local) Unlock(ctx context.Context) error {
	if err := os.Remove(l.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *Local) lockPath() string {
	return l.path + ".lock"
}

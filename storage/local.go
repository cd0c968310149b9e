// Package storage keeps defect attachments on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local writes files below Root, one directory per key prefix
type Local struct {
	Root string
}

func NewLocal(root string) *Local {
	return &Local{Root: root}
}

// Save stores data under dir/<uuid>_<name> and returns the path relative to Root
func (l *Local) Save(ctx context.Context, dir, name string, data []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	rel := filepath.Join(SafeName(dir), uuid.NewString()+"_"+SafeName(name))
	full := filepath.Join(l.Root, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return filepath.ToSlash(rel), nil
}

// Open reads a file previously returned by Save
func (l *Local) Open(ctx context.Context, rel string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	full, err := l.resolve(rel)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(full)
}

// Delete removes a file previously returned by Save. Missing files are
// not an error.
func (l *Local) Delete(ctx context.Context, rel string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	full, err := l.resolve(rel)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

func (l *Local) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid path %q", rel)
	}
	return filepath.Join(l.Root, clean), nil
}

// SafeName strips directories and characters we do not want on disk
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			return '_'
		case r < 32:
			return -1
		default:
			return r
		}
	}, name)

	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

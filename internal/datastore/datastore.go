// Package datastore holds the byte-level stores a storage module resolves to.
package datastore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/juju/errors"

	"docstore/internal/config"
)

// StorageRoot is the placeholder disc paths use for the handler's root.
const StorageRoot = "$STORAGEROOT"

// Store reads and writes content for one tenant within one module. Paths
// are relative and use forward slashes. The empty domain is the module's
// own area.
type Store interface {
	// Save writes r under domain/path and returns the bytes written. A
	// non-negative size must match the content length.
	Save(ctx context.Context, domain, path string, r io.Reader, size int64) (int64, error)

	// Open returns a not-found error when nothing is stored at path.
	Open(ctx context.Context, domain, path string) (io.ReadCloser, error)

	// Delete removes the content and returns its size. Deleting a missing
	// path returns 0 and no error.
	Delete(ctx context.Context, domain, path string) (int64, error)

	Exists(ctx context.Context, domain, path string) (bool, error)
	Size(ctx context.Context, domain, path string) (int64, error)
}

// Options carries everything a backend needs to bind itself to a tenant
// and module.
type Options struct {
	// Tenant is the tenant path segment, see storage.TenantPath.
	Tenant     string
	Module     config.ModuleConfig
	Properties map[string]string
}

// New builds the store for handler type handlerType.
func New(ctx context.Context, handlerType string, opts Options) (Store, error) {
	switch handlerType {
	case "disc":
		return NewDiscStore(opts)
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, opts)
	default:
		return nil, errors.NotValidf("storage handler type %q", handlerType)
	}
}

// cleanPath normalizes a relative content path and rejects paths that
// climb out of their root.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errors.NotValidf("content path %q", p)
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", errors.NotValidf("empty content path")
	}
	return cleaned, nil
}

func checkSize(expected, written int64) error {
	if expected >= 0 && written != expected {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expected, written)
	}
	return nil
}

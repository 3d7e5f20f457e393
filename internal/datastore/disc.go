package datastore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/mitchellh/mapstructure"
)

// DiscOptions are the disc handler properties.
type DiscOptions struct {
	Root string `mapstructure:"$STORAGEROOT"`
}

// DiscStore keeps content on the local filesystem:
//
//	<module path>/<tenant>/<path>
//	<domain path>/<tenant>/<path>
//
// Module and domain paths may start with $STORAGEROOT.
type DiscStore struct {
	base    string
	domains map[string]string
}

var _ Store = (*DiscStore)(nil)

// NewDiscStore resolves the module's path templates for opts.Tenant.
func NewDiscStore(opts Options) (*DiscStore, error) {
	var do DiscOptions
	if err := mapstructure.Decode(opts.Properties, &do); err != nil {
		return nil, fmt.Errorf("decoding disc properties: %w", err)
	}

	modulePath := opts.Module.Path
	if modulePath == "" {
		modulePath = filepath.Join(StorageRoot, opts.Module.Name)
	}
	base, err := expandRoot(modulePath, do.Root)
	if err != nil {
		return nil, err
	}

	s := &DiscStore{
		base:    filepath.Join(base, opts.Tenant),
		domains: make(map[string]string, len(opts.Module.Domains)),
	}
	for _, d := range opts.Module.Domains {
		if d.Path == "" {
			continue
		}
		dp, err := expandRoot(d.Path, do.Root)
		if err != nil {
			return nil, err
		}
		s.domains[d.Name] = filepath.Join(dp, opts.Tenant)
	}
	return s, nil
}

func expandRoot(p, root string) (string, error) {
	if !strings.Contains(p, StorageRoot) {
		return filepath.FromSlash(p), nil
	}
	if root == "" {
		return "", errors.NotValidf("disc path %q without %s property", p, StorageRoot)
	}
	return filepath.FromSlash(strings.ReplaceAll(p, StorageRoot, root)), nil
}

// Base returns the tenant's directory for the module.
func (s *DiscStore) Base() string {
	return s.base
}

func (s *DiscStore) resolve(domain, p string) (string, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	dir := s.base
	if domain != "" {
		if d, ok := s.domains[domain]; ok {
			dir = d
		} else {
			dir = filepath.Join(s.base, domain)
		}
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

// Save writes atomically through a temp file in the destination directory.
func (s *DiscStore) Save(ctx context.Context, domain, p string, r io.Reader, size int64) (int64, error) {
	destPath, err := s.resolve(domain, p)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := checkSize(size, written); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

func (s *DiscStore) Open(ctx context.Context, domain, p string) (io.ReadCloser, error) {
	srcPath, err := s.resolve(domain, p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(srcPath)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("content %q", p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *DiscStore) Delete(ctx context.Context, domain, p string) (int64, error) {
	target, err := s.resolve(domain, p)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if err := os.Remove(target); err != nil {
		return 0, fmt.Errorf("failed to remove file: %w", err)
	}
	return info.Size(), nil
}

func (s *DiscStore) Exists(ctx context.Context, domain, p string) (bool, error) {
	target, err := s.resolve(domain, p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

func (s *DiscStore) Size(ctx context.Context, domain, p string) (int64, error) {
	target, err := s.resolve(domain, p)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return 0, errors.NotFoundf("content %q", p)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

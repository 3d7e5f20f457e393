package thirdparty

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
)

// Item is a file or folder as the remote store reports it. Path is
// relative to the link root without a leading slash; the root is "".
type Item struct {
	Path     string
	Name     string
	IsFolder bool
	Size     int64
	Modified time.Time

	// Err is set on a listed item the store could not describe.
	Err error
}

// Session is an open connection to one linked store. Missing paths yield
// not-found errors.
type Session interface {
	Stat(ctx context.Context, p string) (*Item, error)
	List(ctx context.Context, p string) ([]*Item, error)
	CreateFolder(ctx context.Context, parent, name string) (*Item, error)
	Upload(ctx context.Context, parent, name string, r io.Reader, size int64) (*Item, error)
	Download(ctx context.Context, p string) (io.ReadCloser, error)

	// Move and Copy place p under toParent as name.
	Move(ctx context.Context, p, toParent, name string) (*Item, error)
	Copy(ctx context.Context, p, toParent, name string) (*Item, error)

	// Delete removes p with everything below it.
	Delete(ctx context.Context, p string) error

	Close() error
}

// Opener connects to the store a link points at.
type Opener func(ctx context.Context, info *ProviderInfo) (Session, error)

// Registry maps provider keys to openers.
type Registry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewRegistry returns a registry that can open S3 links. Other providers
// need an opener registered by the caller.
func NewRegistry() *Registry {
	r := &Registry{openers: make(map[string]Opener)}
	r.Register(S3, OpenS3Session)
	return r
}

// Register installs or replaces the opener for p.
func (r *Registry) Register(p Provider, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[p.Key] = open
}

// Open connects to the link's store.
func (r *Registry) Open(ctx context.Context, info *ProviderInfo) (Session, error) {
	r.mu.RLock()
	open, ok := r.openers[info.Provider.Key]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotSupportedf("sessions for provider %q", info.Provider.Key)
	}
	s, err := open(ctx, info)
	if err != nil {
		return nil, errors.Annotatef(err, "opening %s link %d", info.Provider.Key, info.ID)
	}
	return s, nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func baseName(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// cleanItemPath normalizes a provider path and rejects escapes from the
// link root.
func cleanItemPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errors.NotValidf("path %q", p)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/"), nil
}

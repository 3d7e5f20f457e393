package thirdparty

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"

	"docstore/internal/files"
)

// MemorySession is a remote store kept in memory. It is used in tests and
// for providers whose wire protocol is not wired in.
type MemorySession struct {
	mu     sync.Mutex
	clock  files.Clock
	nodes  map[string]*memNode
	fail   map[string]error
	closes int
}

type memNode struct {
	folder   bool
	data     []byte
	modified time.Time
}

var _ Session = (*MemorySession)(nil)

// NewMemorySession creates a store holding only the root folder.
func NewMemorySession(clock files.Clock) *MemorySession {
	return &MemorySession{
		clock: clock,
		nodes: map[string]*memNode{"": {folder: true, modified: clock.Now()}},
		fail:  make(map[string]error),
	}
}

// Opener hands out this session for every link.
func (m *MemorySession) Opener() Opener {
	return func(context.Context, *ProviderInfo) (Session, error) {
		return m, nil
	}
}

// FailOn makes every read of p return err. Listings report p as an item
// carrying err.
func (m *MemorySession) FailOn(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[p] = err
}

// Closes returns how many times Close was called.
func (m *MemorySession) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *MemorySession) Stat(_ context.Context, p string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.readable(p)
	if err != nil {
		return nil, err
	}
	return m.item(p), nil
}

func (m *MemorySession) List(_ context.Context, p string) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.readable(p)
	if err != nil {
		return nil, err
	}
	if !m.nodes[p].folder {
		return nil, errors.NotValidf("listing file %q", p)
	}

	var result []*Item
	for k := range m.nodes {
		if k == "" || parentPath(k) != p {
			continue
		}
		if ferr, ok := m.fail[k]; ok {
			result = append(result, &Item{Path: k, Name: baseName(k), IsFolder: m.nodes[k].folder, Err: ferr})
			continue
		}
		result = append(result, m.item(k))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (m *MemorySession) CreateFolder(_ context.Context, parent, name string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, err := m.newChild(parent, name)
	if err != nil {
		return nil, err
	}
	m.nodes[target] = &memNode{folder: true, modified: m.clock.Now()}
	return m.item(target), nil
}

func (m *MemorySession) Upload(_ context.Context, parent, name string, r io.Reader, size int64) (*Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(err, "reading upload")
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, errors.NotValidf("upload of %d bytes declared as %d", len(data), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	parent, err = m.folder(parent)
	if err != nil {
		return nil, err
	}
	target := joinPath(parent, name)
	if n, ok := m.nodes[target]; ok && n.folder {
		return nil, errors.AlreadyExistsf("folder %q", target)
	}
	m.nodes[target] = &memNode{data: data, modified: m.clock.Now()}
	return m.item(target), nil
}

func (m *MemorySession) Download(_ context.Context, p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.readable(p)
	if err != nil {
		return nil, err
	}
	n := m.nodes[p]
	if n.folder {
		return nil, errors.NotValidf("downloading folder %q", p)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(n.data))), nil
}

func (m *MemorySession) Move(_ context.Context, p, toParent, name string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, target, err := m.transfer(p, toParent, name)
	if err != nil {
		return nil, err
	}
	if from == target {
		return m.item(from), nil
	}
	for _, k := range m.subtree(from) {
		m.nodes[target+strings.TrimPrefix(k, from)] = m.nodes[k]
		delete(m.nodes, k)
	}
	return m.item(target), nil
}

func (m *MemorySession) Copy(_ context.Context, p, toParent, name string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, target, err := m.transfer(p, toParent, name)
	if err != nil {
		return nil, err
	}
	if from == target {
		return nil, errors.AlreadyExistsf("item %q", target)
	}
	now := m.clock.Now()
	for _, k := range m.subtree(from) {
		n := m.nodes[k]
		m.nodes[target+strings.TrimPrefix(k, from)] = &memNode{folder: n.folder, data: bytes.Clone(n.data), modified: now}
	}
	return m.item(target), nil
}

func (m *MemorySession) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.readable(p)
	if err != nil {
		return err
	}
	if p == "" {
		return errors.NotValidf("deleting the root folder")
	}
	for _, k := range m.subtree(p) {
		delete(m.nodes, k)
	}
	return nil
}

func (m *MemorySession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// readable cleans p and checks that it exists and is not failing.
func (m *MemorySession) readable(p string) (string, error) {
	p, err := cleanItemPath(p)
	if err != nil {
		return "", err
	}
	if ferr, ok := m.fail[p]; ok {
		return "", ferr
	}
	if _, ok := m.nodes[p]; !ok {
		return "", errors.NotFoundf("item %q", p)
	}
	return p, nil
}

func (m *MemorySession) folder(p string) (string, error) {
	p, err := m.readable(p)
	if err != nil {
		return "", err
	}
	if !m.nodes[p].folder {
		return "", errors.NotValidf("%q is not a folder", p)
	}
	return p, nil
}

func (m *MemorySession) newChild(parent, name string) (string, error) {
	if name == "" || strings.Contains(name, "/") {
		return "", errors.NotValidf("item name %q", name)
	}
	parent, err := m.folder(parent)
	if err != nil {
		return "", err
	}
	target := joinPath(parent, name)
	if _, ok := m.nodes[target]; ok {
		return "", errors.AlreadyExistsf("item %q", target)
	}
	return target, nil
}

func (m *MemorySession) transfer(p, toParent, name string) (from, target string, err error) {
	from, err = m.readable(p)
	if err != nil {
		return "", "", err
	}
	if from == "" {
		return "", "", errors.NotValidf("moving the root folder")
	}
	toParent, err = m.folder(toParent)
	if err != nil {
		return "", "", err
	}
	if toParent == from || strings.HasPrefix(toParent, from+"/") {
		return "", "", errors.NotValidf("moving %q into itself", from)
	}
	if name == "" || strings.Contains(name, "/") {
		return "", "", errors.NotValidf("item name %q", name)
	}
	target = joinPath(toParent, name)
	if _, ok := m.nodes[target]; ok && target != from {
		return "", "", errors.AlreadyExistsf("item %q", target)
	}
	return from, target, nil
}

func (m *MemorySession) subtree(p string) []string {
	keys := []string{p}
	for k := range m.nodes {
		if strings.HasPrefix(k, p+"/") {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *MemorySession) item(p string) *Item {
	n := m.nodes[p]
	return &Item{
		Path:     p,
		Name:     baseName(p),
		IsFolder: n.folder,
		Size:     int64(len(n.data)),
		Modified: n.modified,
	}
}

package datastore

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/juju/errors"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.Save(ctx, "", "a/b.txt", strings.NewReader("abc"), 3); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := m.Save(ctx, "temp", "a/b.txt", strings.NewReader("z"), 1); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (domains are separate)", m.Len())
	}

	rc, err := m.Open(ctx, "", "/a/b.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "abc" {
		t.Errorf("Open() = %q, want %q", data, "abc")
	}

	if size, _ := m.Size(ctx, "temp", "a/b.txt"); size != 1 {
		t.Errorf("Size() = %d, want 1", size)
	}
	if size, err := m.Delete(ctx, "", "a/b.txt"); err != nil || size != 3 {
		t.Errorf("Delete() = (%d, %v), want (3, nil)", size, err)
	}
	if _, err := m.Size(ctx, "", "a/b.txt"); !errors.Is(err, errors.NotFound) {
		t.Errorf("Size() after Delete error = %v, want NotFound", err)
	}
	if _, err := m.Save(ctx, "", "x", strings.NewReader("abc"), 2); err == nil {
		t.Error("Save() with wrong size expected error")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := strings.Repeat("x", i+1)
			if _, err := m.Save(ctx, "", p, strings.NewReader(p), int64(len(p))); err != nil {
				t.Errorf("Save() error = %v", err)
			}
			_, _ = m.Exists(ctx, "", p)
		}(i)
	}
	wg.Wait()

	if m.Len() != 20 {
		t.Errorf("Len() = %d, want 20", m.Len())
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, "memory", Options{}); err != nil {
		t.Errorf("New(memory) error = %v", err)
	}
	if _, err := New(ctx, "ftp", Options{}); !errors.Is(err, errors.NotValid) {
		t.Errorf("New(ftp) error = %v, want NotValid", err)
	}
	if _, err := New(ctx, "s3", Options{Properties: map[string]string{"region": "us-east-1"}}); !errors.Is(err, errors.NotValid) {
		t.Errorf("New(s3) without bucket error = %v, want NotValid", err)
	}
}

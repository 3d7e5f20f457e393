package datastore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"

	"docstore/internal/config"
)

func newTestDiscStore(t *testing.T) (*DiscStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewDiscStore(Options{
		Tenant: "00/00/05",
		Module: config.ModuleConfig{
			Name: "files",
			Path: "$STORAGEROOT/Products/Files",
			Domains: []config.DomainConfig{
				{Name: "temp", Path: "$STORAGEROOT/Temp"},
			},
		},
		Properties: map[string]string{StorageRoot: root},
	})
	if err != nil {
		t.Fatalf("NewDiscStore() error = %v", err)
	}
	return s, root
}

func TestNewDiscStore(t *testing.T) {
	t.Run("expands storage root", func(t *testing.T) {
		s, root := newTestDiscStore(t)
		want := filepath.Join(root, "Products", "Files", "00", "00", "05")
		if s.Base() != want {
			t.Errorf("Base() = %q, want %q", s.Base(), want)
		}
	})

	t.Run("missing root property", func(t *testing.T) {
		_, err := NewDiscStore(Options{
			Tenant: "0",
			Module: config.ModuleConfig{Name: "files", Path: "$STORAGEROOT/Files"},
		})
		if !errors.Is(err, errors.NotValid) {
			t.Errorf("NewDiscStore() error = %v, want NotValid", err)
		}
	})

	t.Run("absolute module path", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewDiscStore(Options{Tenant: "0", Module: config.ModuleConfig{Name: "m", Path: dir}})
		if err != nil {
			t.Fatalf("NewDiscStore() error = %v", err)
		}
		if s.Base() != filepath.Join(dir, "0") {
			t.Errorf("Base() = %q", s.Base())
		}
	})
}

func TestDiscStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, root := newTestDiscStore(t)

	n, err := s.Save(ctx, "", "folder_1/file_2/v1/content.docx", strings.NewReader("hello world"), 11)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n != 11 {
		t.Errorf("Save() = %d, want 11", n)
	}

	rc, err := s.Open(ctx, "", "folder_1/file_2/v1/content.docx")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello world" {
		t.Errorf("Open() content = %q", data)
	}

	if ok, _ := s.Exists(ctx, "", "folder_1/file_2/v1/content.docx"); !ok {
		t.Error("Exists() = false after Save")
	}

	size, err := s.Delete(ctx, "", "folder_1/file_2/v1/content.docx")
	if err != nil || size != 11 {
		t.Errorf("Delete() = (%d, %v), want (11, nil)", size, err)
	}
	if _, err := s.Open(ctx, "", "folder_1/file_2/v1/content.docx"); !errors.Is(err, errors.NotFound) {
		t.Errorf("Open() after Delete error = %v, want NotFound", err)
	}
	if size, err := s.Delete(ctx, "", "folder_1/file_2/v1/content.docx"); err != nil || size != 0 {
		t.Errorf("second Delete() = (%d, %v), want (0, nil)", size, err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "Products", "Files", "00", "00", "05", "folder_1", "file_2", "v1"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDiscStore_Domains(t *testing.T) {
	ctx := context.Background()
	s, root := newTestDiscStore(t)

	if _, err := s.Save(ctx, "temp", "a.txt", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "Temp", "00", "00", "05", "a.txt")); err != nil {
		t.Errorf("configured domain path not used: %v", err)
	}

	if _, err := s.Save(ctx, "thumbs", "b.png", strings.NewReader("y"), 1); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Base(), "thumbs", "b.png")); err != nil {
		t.Errorf("unconfigured domain not nested under module: %v", err)
	}
}

func TestDiscStore_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestDiscStore(t)

	tests := []struct {
		name    string
		path    string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "size mismatch", path: "a", data: "hello", size: 100, wantErr: true},
		{name: "unknown size", path: "b", data: "hello", size: -1},
		{name: "climbs out", path: "../../etc/passwd", data: "x", size: 1, wantErr: true},
		{name: "empty path", path: "", data: "x", size: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, "", tt.path, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("Save() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if ok, _ := s.Exists(ctx, "", "a"); ok {
		t.Error("failed Save() left content behind")
	}
}

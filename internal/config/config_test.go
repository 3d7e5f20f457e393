package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/srv/docstore")
	original.TenantID = 7
	original.Standalone = true
	original.Notify = NotifyConfig{Type: "redis", Addr: "localhost:6379", DB: 2}
	original.Thirdparty.Enable = []string{"box", "s3"}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.TenantID != 7 || !got.Standalone {
		t.Errorf("TenantID, Standalone = %d, %v; want 7, true", got.TenantID, got.Standalone)
	}
	if got.Notify.Addr != "localhost:6379" || got.Notify.DB != 2 {
		t.Errorf("Notify = %+v", got.Notify)
	}
	if len(got.Thirdparty.Enable) != 2 {
		t.Errorf("len(Thirdparty.Enable) = %d, want 2", len(got.Thirdparty.Enable))
	}
	if got.Storage == nil {
		t.Fatal("Storage section lost in round trip")
	}
	if len(got.Storage.Modules) != len(original.Storage.Modules) {
		t.Fatalf("len(Modules) = %d, want %d", len(got.Storage.Modules), len(original.Storage.Modules))
	}
	files := got.Storage.Modules[0]
	if files.Name != "files" || !files.Count || len(files.Domains) != 1 {
		t.Errorf("files module = %+v", files)
	}
	if got.Storage.Handlers[0].Properties["$STORAGEROOT"] != "/srv/docstore/data" {
		t.Errorf("disc root = %q", got.Storage.Handlers[0].Properties["$STORAGEROOT"])
	}
	if got.Storage.Consumers[0].Handler != "s3" {
		t.Errorf("consumer handler = %q, want s3", got.Storage.Consumers[0].Handler)
	}
}

func TestRead_WithoutStorageSection(t *testing.T) {
	m := &Manager{}
	got, err := m.Read(strings.NewReader("base_dir = \"/tmp/x\"\n[database]\ntype = \"memory\"\n"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Storage != nil {
		t.Errorf("Storage = %+v, want nil", got.Storage)
	}
	if err := Validate(got); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/docstore")

	if cfg.LogDir != "/data/docstore/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/docstore/log")
	}
	if cfg.Encryption.PublicKeyPath != "/data/docstore/keys/docstore.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Encryption.PrivateKeyPath != "/data/docstore/keys/docstore.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q", cfg.Encryption.PrivateKeyPath)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(NewConfig()) = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown database type",
			mutate:  func(c *Config) { c.Database.Type = "postgres" },
			wantErr: "Database.Type",
		},
		{
			name:    "sqlite without data dir",
			mutate:  func(c *Config) { c.Database.DataDir = "" },
			wantErr: "Database.DataDir",
		},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.Notify = NotifyConfig{Type: "redis"} },
			wantErr: "Notify.Addr",
		},
		{
			name: "module with unknown handler",
			mutate: func(c *Config) {
				c.Storage.Modules = append(c.Storage.Modules, ModuleConfig{Name: "x", Type: "nope"})
			},
			wantErr: `unknown handler "nope"`,
		},
		{
			name: "duplicate module",
			mutate: func(c *Config) {
				c.Storage.Modules = append(c.Storage.Modules, c.Storage.Modules[0])
			},
			wantErr: "duplicate module name",
		},
		{
			name: "duplicate consumer",
			mutate: func(c *Config) {
				c.Storage.Consumers = append(c.Storage.Consumers, c.Storage.Consumers[0])
			},
			wantErr: "duplicate consumer name",
		},
		{
			name: "bad handler type",
			mutate: func(c *Config) {
				c.Storage.Handlers[0].Type = "ftp"
			},
			wantErr: "Type",
		},
		{
			name:    "negative quota",
			mutate:  func(c *Config) { c.Storage.Quota.MaxFileSize = -1 },
			wantErr: "MaxFileSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data")
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docstore.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docstore.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		dir := t.TempDir()
		cfg := NewConfig(dir)
		cfg.Database.Type = ""
		if err := Init(filepath.Join(dir, "docstore.toml"), cfg); err == nil {
			t.Fatal("Init() expected validation error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docstore.toml")
		cfg := NewConfig(dir)
		cfg.TenantID = 3
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.TenantID != 3 {
			t.Errorf("TenantID = %d, want 3", got.TenantID)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/docstore.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

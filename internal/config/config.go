package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for docstore.
type Config struct {
	TenantID   int              `toml:"tenant_id"`
	UserID     string           `toml:"user_id" validate:"omitempty,uuid"`
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir"`
	Standalone bool             `toml:"standalone"`
	Database   DatabaseConfig   `toml:"database"`
	Encryption EncryptionConfig `toml:"encryption"`
	Notify     NotifyConfig     `toml:"notify"`
	Thirdparty ThirdpartyConfig `toml:"thirdparty"`
	Storage    *StorageConfig   `toml:"storage,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for credentials.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=age test"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"`
}

// NotifyConfig selects the cache notification channel. "local" delivers
// within the process only; "redis" reaches every process sharing the server.
type NotifyConfig struct {
	Type     string `toml:"type" validate:"omitempty,oneof=local redis"`
	Addr     string `toml:"addr,omitempty" validate:"required_if=Type redis"`
	Password string `toml:"password,omitempty"`
	DB       int    `toml:"db,omitempty" validate:"gte=0"`
}

// ThirdpartyConfig lists the provider keys that may be linked. An empty
// list enables every known provider.
type ThirdpartyConfig struct {
	Enable []string `toml:"enable"`
}

// StorageConfig is the static storage section: handler types, the module
// list and the named consumers tenants may switch to.
type StorageConfig struct {
	Handlers  []HandlerConfig  `toml:"handlers" validate:"dive"`
	Modules   []ModuleConfig   `toml:"modules" validate:"dive"`
	Consumers []ConsumerConfig `toml:"consumers" validate:"dive"`
	Quota     QuotaConfig      `toml:"quota"`
}

// HandlerConfig names a store implementation and its default properties.
// Property values may reference $STORAGEROOT.
type HandlerConfig struct {
	Name       string            `toml:"name" validate:"required"`
	Type       string            `toml:"type" validate:"required,oneof=disc memory s3"`
	Properties map[string]string `toml:"properties,omitempty"`
}

// ModuleConfig binds a module name to a handler. Type is a handler name.
type ModuleConfig struct {
	Name           string         `toml:"name" validate:"required"`
	Type           string         `toml:"type" validate:"required"`
	Path           string         `toml:"path"`
	VirtualPath    string         `toml:"virtual_path,omitempty"`
	Count          bool           `toml:"count"`
	Visible        bool           `toml:"visible"`
	DisableMigrate bool           `toml:"disable_migrate"`
	Public         bool           `toml:"public"`
	Domains        []DomainConfig `toml:"domains,omitempty" validate:"dive"`
}

// DomainConfig is a named sub-area of a module with its own path.
type DomainConfig struct {
	Name        string `toml:"name" validate:"required"`
	Type        string `toml:"type,omitempty"`
	Path        string `toml:"path"`
	VirtualPath string `toml:"virtual_path,omitempty"`
	Visible     bool   `toml:"visible"`
}

// ConsumerConfig describes a named external store. Handler is a handler
// type. Props lists the property names a tenant must supply before the
// consumer counts as configured. Additional holds fixed properties.
type ConsumerConfig struct {
	Name       string            `toml:"name" validate:"required"`
	Handler    string            `toml:"handler" validate:"required,oneof=disc memory s3"`
	Props      []string          `toml:"props"`
	Additional map[string]string `toml:"additional,omitempty"`
}

// QuotaConfig holds default per-tenant limits in bytes. Zero means unlimited.
type QuotaConfig struct {
	MaxFileSize  int64 `toml:"max_file_size" validate:"gte=0"`
	MaxTotalSize int64 `toml:"max_total_size" validate:"gte=0"`
}

// NewConfig creates a Config rooted at baseDir with default key paths, a
// sqlite database and the default storage section.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "docstore.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "docstore.key"),
		},
		Notify:  NotifyConfig{Type: "local"},
		Storage: DefaultStorage(filepath.Join(baseDir, "data")),
	}
}

// DefaultStorage returns a disc handler rooted at root, the files module
// (quota counted) and a few auxiliary modules, plus an s3 consumer.
func DefaultStorage(root string) *StorageConfig {
	return &StorageConfig{
		Handlers: []HandlerConfig{
			{Name: "disc", Type: "disc", Properties: map[string]string{"$STORAGEROOT": root}},
		},
		Modules: []ModuleConfig{
			{
				Name: "files", Type: "disc", Path: "$STORAGEROOT/Products/Files", Count: true, Visible: true,
				Domains: []DomainConfig{{Name: "files_temp", Path: "$STORAGEROOT/Products/Files/temp", Visible: true}},
			},
			{Name: "logo", Type: "disc", Path: "$STORAGEROOT/Modules/Logo", Visible: true, Public: true},
			{Name: "backup", Type: "disc", Path: "$STORAGEROOT/Backup", Visible: true, DisableMigrate: true},
		},
		Consumers: []ConsumerConfig{
			{Name: "s3", Handler: "s3", Props: []string{"bucket", "region", "acesskey", "secretaccesskey"}},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

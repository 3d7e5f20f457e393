package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/errors"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/encryption"
	"docstore/internal/files"
	"docstore/internal/notify"
)

// SettingsRepository persists storage settings rows.
type SettingsRepository interface {
	GetStorageSettings(ctx context.Context, tenantID int) (*database.StorageSettingsRow, error)
	SaveStorageSettings(ctx context.Context, row database.StorageSettingsRow) error
	DeleteStorageSettings(ctx context.Context, tenantID int) error
}

// Settings is an immutable snapshot of a tenant's storage selection.
// Module names a consumer; the empty module means the default handlers.
type Settings struct {
	TenantID int
	Module   string
	props    map[string]string
}

// Prop returns one decrypted property.
func (s *Settings) Prop(key string) string {
	return s.props[key]
}

// PropKeys returns the property names in sorted order.
func (s *Settings) PropKeys() []string {
	keys := make([]string, 0, len(s.props))
	for k := range s.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Consumer is a named external store with its merged properties. The zero
// Consumer is not set.
type Consumer struct {
	name     string
	handler  string
	props    map[string]string
	required []string
}

// NewConsumer binds cfg to the given properties, which override cfg.Additional.
func NewConsumer(cfg config.ConsumerConfig, props map[string]string) Consumer {
	merged := make(map[string]string, len(cfg.Additional)+len(props))
	for k, v := range cfg.Additional {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	return Consumer{
		name:     cfg.Name,
		handler:  cfg.Handler,
		props:    merged,
		required: cfg.Props,
	}
}

func (c Consumer) Name() string        { return c.name }
func (c Consumer) HandlerType() string { return c.handler }

// IsSet reports whether every required property has a value.
func (c Consumer) IsSet() bool {
	if c.name == "" || c.handler == "" {
		return false
	}
	for _, key := range c.required {
		if c.props[key] == "" {
			return false
		}
	}
	return true
}

// Props returns a copy of the merged properties.
func (c Consumer) Props() map[string]string {
	out := make(map[string]string, len(c.props))
	for k, v := range c.props {
		out[k] = v
	}
	return out
}

// SettingsManager loads, saves and clears tenant storage settings. Loaded
// settings are kept as snapshots; a change replaces the snapshot whole.
// Property values are encrypted at rest.
type SettingsManager struct {
	repo      SettingsRepository
	creds     *encryption.Credentials
	section   *config.StorageConfig
	notifier  notify.Notifier
	logger    files.Logger
	snapshots sync.Map // int -> *Settings

	mu       sync.Mutex
	onChange []func(tenantPath string)
}

func NewSettingsManager(repo SettingsRepository, creds *encryption.Credentials, section *config.StorageConfig,
	notifier notify.Notifier, logger files.Logger) *SettingsManager {
	return &SettingsManager{
		repo:     repo,
		creds:    creds,
		section:  section,
		notifier: notifier,
		logger:   logger,
	}
}

// OnChange registers fn to run synchronously after every Save and Clear.
func (m *SettingsManager) OnChange(fn func(tenantPath string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Load returns the tenant's settings. A tenant that never saved settings
// gets an empty snapshot.
func (m *SettingsManager) Load(ctx context.Context, tenantID int) (*Settings, error) {
	if s, ok := m.snapshots.Load(tenantID); ok {
		return s.(*Settings), nil
	}

	row, err := m.repo.GetStorageSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s := &Settings{TenantID: tenantID}
	if row != nil {
		s.Module = row.Module
		s.props = m.decryptProps(tenantID, row.Props)
	}
	actual, _ := m.snapshots.LoadOrStore(tenantID, s)
	return actual.(*Settings), nil
}

func (m *SettingsManager) decryptProps(tenantID int, raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var sealed map[string]string
	if err := json.Unmarshal([]byte(raw), &sealed); err != nil {
		m.logger.Warn("unreadable storage settings", "tenant", tenantID, "error", err)
		return nil
	}
	props := make(map[string]string, len(sealed))
	for k, v := range sealed {
		plain, ok := m.creds.TryDecrypt(v)
		if !ok {
			m.logger.Warn("cannot decrypt storage property", "tenant", tenantID, "key", k)
			continue
		}
		props[k] = plain
	}
	return props
}

// Save selects consumer module for the tenant with props and invalidates
// the tenant's stores everywhere.
func (m *SettingsManager) Save(ctx context.Context, tenantID int, module string, props map[string]string) error {
	if module != "" {
		if _, ok := m.consumerConfig(module); !ok {
			return errors.NotValidf("storage consumer %q", module)
		}
	}

	sealed := make(map[string]string, len(props))
	for k, v := range props {
		enc, err := m.creds.Encrypt(v)
		if err != nil {
			return err
		}
		sealed[k] = enc
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("encoding storage properties: %w", err)
	}

	if err := m.repo.SaveStorageSettings(ctx, database.StorageSettingsRow{
		TenantID: tenantID,
		Module:   module,
		Props:    string(raw),
	}); err != nil {
		return err
	}

	snapshot := &Settings{TenantID: tenantID, Module: module, props: make(map[string]string, len(props))}
	for k, v := range props {
		snapshot.props[k] = v
	}
	m.snapshots.Store(tenantID, snapshot)
	return m.changed(ctx, tenantID)
}

// Clear resets the tenant to the default handlers.
func (m *SettingsManager) Clear(ctx context.Context, tenantID int) error {
	if err := m.repo.DeleteStorageSettings(ctx, tenantID); err != nil {
		return err
	}
	m.snapshots.Store(tenantID, &Settings{TenantID: tenantID})
	return m.changed(ctx, tenantID)
}

// Forget drops the cached snapshot so the next Load reads the database.
func (m *SettingsManager) Forget(tenantID int) {
	m.snapshots.Delete(tenantID)
}

func (m *SettingsManager) changed(ctx context.Context, tenantID int) error {
	path := TenantPath(strconv.Itoa(tenantID))
	if tenantID == defaultTenantID {
		path = DefaultTenantName
	}

	m.mu.Lock()
	hooks := append([]func(string){}, m.onChange...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(path)
	}

	for _, module := range moduleList(m.section, true) {
		if err := m.notifier.Publish(ctx, TopicDataStore, DataStoreCacheItem{TenantID: path, Module: module}); err != nil {
			return fmt.Errorf("publishing storage change for tenant %d: %w", tenantID, err)
		}
	}
	return nil
}

// NotifyConsumerChanged tells every process that consumer name changed for
// the tenant. Tenants using it fall back to the default handlers.
func (m *SettingsManager) NotifyConsumerChanged(ctx context.Context, tenantID int, name string) error {
	return m.notifier.Publish(ctx, TopicConsumer, ConsumerCacheItem{TenantID: tenantID, Name: name})
}

// Consumer returns the consumer selected by s, or the zero Consumer.
func (m *SettingsManager) Consumer(s *Settings) Consumer {
	if s == nil || s.Module == "" || s.props == nil {
		return Consumer{}
	}
	cfg, ok := m.consumerConfig(s.Module)
	if !ok {
		return Consumer{}
	}
	return NewConsumer(cfg, s.props)
}

// ConsumerByName returns a consumer configured with its fixed properties only.
func (m *SettingsManager) ConsumerByName(name string) (Consumer, bool) {
	cfg, ok := m.consumerConfig(name)
	if !ok {
		return Consumer{}, false
	}
	return NewConsumer(cfg, nil), true
}

func (m *SettingsManager) consumerConfig(name string) (config.ConsumerConfig, bool) {
	if m.section == nil {
		return config.ConsumerConfig{}, false
	}
	for _, c := range m.section.Consumers {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return config.ConsumerConfig{}, false
}

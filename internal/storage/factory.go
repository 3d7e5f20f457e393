// Package storage resolves (tenant, module) pairs to configured stores and
// keeps the resolved stores cached until the tenant's settings change.
package storage

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"docstore/internal/config"
	"docstore/internal/datastore"
	"docstore/internal/files"
)

// Factory builds and caches stores. One Factory is created at startup and
// shared by every request.
type Factory struct {
	section    *config.StorageConfig
	standalone bool
	settings   *SettingsManager
	quotas     QuotaRepository
	cache      *handleCache
	logger     files.Logger
}

// NewFactory creates a Factory over section, which may be nil when the
// deployment has no storage configuration. The factory evicts a tenant's
// stores whenever settings saves or clears for that tenant.
func NewFactory(section *config.StorageConfig, standalone bool, settings *SettingsManager,
	quotas QuotaRepository, logger files.Logger) *Factory {
	f := &Factory{
		section:    section,
		standalone: standalone,
		settings:   settings,
		quotas:     quotas,
		cache:      newHandleCache(),
		logger:     logger,
	}
	settings.OnChange(func(tenantPath string) { f.EvictTenant(tenantPath) })
	return f
}

// Settings returns the settings manager the factory reads.
func (f *Factory) Settings() *SettingsManager {
	return f.settings
}

// GetStorage returns the store of module for tenant. The empty tenant is
// the default tenant. A cached store is returned without a freshness check.
func (f *Factory) GetStorage(ctx context.Context, tenant, module string) (datastore.Store, error) {
	tenantID, path, err := resolveTenant(tenant)
	if err != nil {
		return nil, err
	}

	s, gen, ok := f.cache.get(path, module)
	if ok {
		return s, nil
	}
	if f.section == nil {
		return nil, files.ErrConfigSectionNotFound
	}

	settings, err := f.settings.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s, err = f.build(ctx, tenantID, path, module, f.settings.Consumer(settings))
	if err != nil {
		return nil, err
	}

	s, cached := f.cache.put(path, module, s, gen)
	if !cached {
		f.logger.Debug("store built during eviction, not cached", "tenant", path, "module", module)
	}
	return s, nil
}

// GetStorageFromConsumer builds a store of module for tenant using consumer
// instead of the tenant's saved settings. The result is not cached.
func (f *Factory) GetStorageFromConsumer(ctx context.Context, tenant, module string, consumer Consumer) (datastore.Store, error) {
	if f.section == nil {
		return nil, files.ErrConfigSectionNotFound
	}
	tenantID, path, err := resolveTenant(tenant)
	if err != nil {
		return nil, err
	}
	return f.build(ctx, tenantID, path, module, consumer)
}

func (f *Factory) build(ctx context.Context, tenantID int, path, module string, consumer Consumer) (datastore.Store, error) {
	m, ok := f.moduleConfig(module)
	if !ok {
		return nil, errors.NotValidf("storage module %q", module)
	}
	h, ok := f.handlerConfig(m.Type)
	if !ok {
		return nil, errors.NotFoundf("storage handler %q for module %q", m.Type, m.Name)
	}

	handlerType, props := h.Type, h.Properties
	if f.standalone && !m.DisableMigrate && consumer.IsSet() {
		handlerType, props = consumer.HandlerType(), consumer.Props()
	}

	s, err := datastore.New(ctx, handlerType, datastore.Options{
		Tenant:     path,
		Module:     m,
		Properties: props,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "building %s store for module %q", handlerType, m.Name)
	}
	f.logger.Debug("built store", "tenant", path, "module", m.Name, "handler", handlerType, "quota", m.Count)

	if !m.Count {
		return s, nil
	}
	return &quotaStore{
		Store: s,
		quota: NewQuotaController(tenantID, m.Name, f.quotas, f.section.Quota),
	}, nil
}

// EvictTenant drops every cached store of the tenant path.
func (f *Factory) EvictTenant(tenantPath string) {
	if n := f.cache.evictTenant(tenantPath); n > 0 {
		f.logger.Info("evicted cached stores", "tenant", tenantPath, "count", n)
	}
}

// CachedCount returns the number of cached stores.
func (f *Factory) CachedCount() int {
	return f.cache.len()
}

// GetModuleList returns the names of visible modules. With
// exceptDisabledMigration set, modules excluded from migration are skipped.
func (f *Factory) GetModuleList(exceptDisabledMigration bool) ([]string, error) {
	if f.section == nil {
		return nil, files.ErrConfigSectionNotFound
	}
	return moduleList(f.section, exceptDisabledMigration), nil
}

func moduleList(section *config.StorageConfig, exceptDisabledMigration bool) []string {
	if section == nil {
		return nil
	}
	var names []string
	for _, m := range section.Modules {
		if !m.Visible || (exceptDisabledMigration && m.DisableMigrate) {
			continue
		}
		names = append(names, m.Name)
	}
	return names
}

// GetDomainList returns the visible domain names of module.
func (f *Factory) GetDomainList(module string) ([]string, error) {
	if f.section == nil {
		return nil, files.ErrConfigSectionNotFound
	}
	m, ok := f.moduleConfig(module)
	if !ok {
		return nil, errors.NotValidf("storage module %q", module)
	}
	var names []string
	for _, d := range m.Domains {
		if d.Visible {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

func (f *Factory) moduleConfig(name string) (config.ModuleConfig, bool) {
	for _, m := range f.section.Modules {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return config.ModuleConfig{}, false
}

func (f *Factory) handlerConfig(name string) (config.HandlerConfig, bool) {
	for _, h := range f.section.Handlers {
		if strings.EqualFold(h.Name, name) {
			return h, true
		}
	}
	return config.HandlerConfig{}, false
}

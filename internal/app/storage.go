package app

import (
	"context"
	"io"
	"strconv"

	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/storage"
)

// StorageInfo describes where the actor's tenant keeps content.
type StorageInfo struct {
	Consumer storage.Consumer // zero when the default handlers are used
	Settings *storage.Settings
	Modules  []string
	Quota    *database.TenantQuota // nil when the configured defaults apply
	Used     int64
}

// StorageInfo loads the tenant's storage selection, its module list and
// quota usage.
func (a *DocstoreApp) StorageInfo(ctx context.Context) (*StorageInfo, error) {
	tenant := a.actor.TenantID
	settings, err := a.storage.Settings().Load(ctx, tenant)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	modules, err := a.storage.GetModuleList(false)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	quota, err := a.store.GetTenantQuota(ctx, tenant)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	used, err := a.store.GetQuotaUsed(ctx, tenant)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	return &StorageInfo{
		Consumer: a.storage.Settings().Consumer(settings),
		Settings: settings,
		Modules:  modules,
		Quota:    quota,
		Used:     used,
	}, nil
}

// SetStorage switches the tenant to consumer with props. Cached stores of
// the tenant are evicted in every process.
func (a *DocstoreApp) SetStorage(ctx context.Context, consumer string, props map[string]string) error {
	if consumer == "" {
		return a.op.Fail(errors.NotValidf("empty consumer name"))
	}
	return a.op.Fail(a.storage.Settings().Save(ctx, a.actor.TenantID, consumer, props))
}

// ClearStorage returns the tenant to the default handlers.
func (a *DocstoreApp) ClearStorage(ctx context.Context) error {
	return a.op.Fail(a.storage.Settings().Clear(ctx, a.actor.TenantID))
}

// SetQuota stores explicit limits for the tenant. Zero means unlimited.
func (a *DocstoreApp) SetQuota(ctx context.Context, maxFileSize, maxTotalSize int64) error {
	if maxFileSize < 0 || maxTotalSize < 0 {
		return a.op.Fail(errors.NotValidf("negative quota"))
	}
	return a.op.Fail(a.store.SetTenantQuota(ctx, database.TenantQuota{
		TenantID:     a.actor.TenantID,
		MaxFileSize:  maxFileSize,
		MaxTotalSize: maxTotalSize,
	}))
}

// PutContent writes r to path in the domain of module through the tenant's
// store. size is -1 when unknown. It returns the bytes written.
func (a *DocstoreApp) PutContent(ctx context.Context, module, domain, path string, r io.Reader, size int64) (int64, error) {
	s, err := a.storage.GetStorage(ctx, strconv.Itoa(a.actor.TenantID), module)
	if err != nil {
		return 0, a.op.Fail(err)
	}
	n, err := s.Save(ctx, domain, path, r, size)
	if err != nil {
		return 0, a.op.Fail(err)
	}
	a.logger.Info("stored content", "module", module, "domain", domain, "path", path, "size", n)
	return n, nil
}

package storage

import (
	"context"
	"io"

	"github.com/juju/errors"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/datastore"
)

// QuotaRepository reads limits and keeps usage counters.
type QuotaRepository interface {
	GetTenantQuota(ctx context.Context, tenantID int) (*database.TenantQuota, error)
	GetQuotaUsed(ctx context.Context, tenantID int) (int64, error)
	AddQuotaUsage(ctx context.Context, tenantID int, module, domain string, delta int64) error
}

// QuotaController enforces a tenant's limits for one module. Limits come
// from the tenant's quota row, or the configured defaults when there is
// none. A zero limit is unlimited.
type QuotaController struct {
	tenantID int
	module   string
	repo     QuotaRepository
	defaults config.QuotaConfig
}

func NewQuotaController(tenantID int, module string, repo QuotaRepository, defaults config.QuotaConfig) *QuotaController {
	return &QuotaController{tenantID: tenantID, module: module, repo: repo, defaults: defaults}
}

func (q *QuotaController) TenantID() int { return q.tenantID }

func (q *QuotaController) limits(ctx context.Context) (maxFile, maxTotal int64, err error) {
	row, err := q.repo.GetTenantQuota(ctx, q.tenantID)
	if err != nil {
		return 0, 0, err
	}
	if row == nil {
		return q.defaults.MaxFileSize, q.defaults.MaxTotalSize, nil
	}
	return row.MaxFileSize, row.MaxTotalSize, nil
}

// Check fails with a quota error when writing a new object of size bytes
// would break a limit. A negative size is unknown and is checked by the
// store once the content is written.
func (q *QuotaController) Check(ctx context.Context, size int64) error {
	return q.check(ctx, size, size)
}

// check tests a write of size bytes that grows usage by delta. A negative
// size skips the file limit; a negative delta never breaks the total.
func (q *QuotaController) check(ctx context.Context, size, delta int64) error {
	maxFile, maxTotal, err := q.limits(ctx)
	if err != nil {
		return err
	}
	if size >= 0 && maxFile > 0 && size > maxFile {
		return errors.QuotaLimitExceededf("file size %d exceeds the limit of %d bytes", size, maxFile)
	}
	if maxTotal <= 0 || delta < 0 {
		return nil
	}
	used, err := q.repo.GetQuotaUsed(ctx, q.tenantID)
	if err != nil {
		return err
	}
	if used+delta > maxTotal {
		return errors.QuotaLimitExceededf("tenant %d storage of %d bytes would exceed the limit of %d bytes",
			q.tenantID, used+delta, maxTotal)
	}
	return nil
}

// Add records delta bytes of usage in domain. Negative deltas release usage.
func (q *QuotaController) Add(ctx context.Context, domain string, delta int64) error {
	if delta == 0 {
		return nil
	}
	return q.repo.AddQuotaUsage(ctx, q.tenantID, q.module, domain, delta)
}

// quotaStore checks before every write and counts after it.
type quotaStore struct {
	datastore.Store
	quota *QuotaController
}

// QuotaOf returns the controller attached to s, if any.
func QuotaOf(s datastore.Store) (*QuotaController, bool) {
	qs, ok := s.(*quotaStore)
	if !ok {
		return nil, false
	}
	return qs.quota, true
}

func (s *quotaStore) Save(ctx context.Context, domain, path string, r io.Reader, size int64) (int64, error) {
	var previous int64
	if ok, err := s.Store.Exists(ctx, domain, path); err != nil {
		return 0, err
	} else if ok {
		if previous, err = s.Store.Size(ctx, domain, path); err != nil {
			return 0, err
		}
	}

	delta := size - previous
	if size < 0 {
		delta = 0
	}
	if err := s.quota.check(ctx, size, delta); err != nil {
		return 0, err
	}

	written, err := s.Store.Save(ctx, domain, path, r, size)
	if err != nil {
		return 0, err
	}
	if size < 0 {
		// The length was unknown up front; enforce both limits now.
		if err := s.quota.check(ctx, written, written-previous); err != nil {
			_, _ = s.Store.Delete(ctx, domain, path)
			_ = s.quota.Add(ctx, domain, -previous)
			return 0, err
		}
	}
	if err := s.quota.Add(ctx, domain, written-previous); err != nil {
		return 0, err
	}
	return written, nil
}

func (s *quotaStore) Delete(ctx context.Context, domain, path string) (int64, error) {
	n, err := s.Store.Delete(ctx, domain, path)
	if err != nil {
		return 0, err
	}
	if err := s.quota.Add(ctx, domain, -n); err != nil {
		return 0, err
	}
	return n, nil
}

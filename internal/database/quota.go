package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TenantQuota holds per-tenant limits in bytes. Zero means unlimited.
type TenantQuota struct {
	TenantID     int
	MaxFileSize  int64
	MaxTotalSize int64
}

// GetTenantQuota returns nil and no error when the tenant has no explicit limits.
func (q *Queries) GetTenantQuota(ctx context.Context, tenantID int) (*TenantQuota, error) {
	quota := TenantQuota{TenantID: tenantID}
	err := q.db.QueryRowContext(ctx,
		`SELECT max_file_size, max_total_size FROM tenant_quota WHERE tenant_id = ?`, tenantID).
		Scan(&quota.MaxFileSize, &quota.MaxTotalSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tenant quota: %w", err)
	}
	return &quota, nil
}

// SetTenantQuota stores explicit limits for a tenant.
func (q *Queries) SetTenantQuota(ctx context.Context, quota TenantQuota) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tenant_quota (tenant_id, max_file_size, max_total_size) VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET max_file_size = excluded.max_file_size, max_total_size = excluded.max_total_size`,
		quota.TenantID, quota.MaxFileSize, quota.MaxTotalSize)
	if err != nil {
		return fmt.Errorf("setting tenant quota: %w", err)
	}
	return nil
}

// GetQuotaUsed returns the bytes counted against a tenant across all modules.
func (q *Queries) GetQuotaUsed(ctx context.Context, tenantID int) (int64, error) {
	var used int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(used), 0) FROM quota_usage WHERE tenant_id = ?`, tenantID).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("summing quota usage: %w", err)
	}
	return used, nil
}

// AddQuotaUsage adjusts the usage row of (tenant, module, domain) by delta,
// never going below zero.
func (q *Queries) AddQuotaUsage(ctx context.Context, tenantID int, module, domain string, delta int64) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO quota_usage (tenant_id, module, domain, used) VALUES (?, ?, ?, MAX(?, 0))
		 ON CONFLICT (tenant_id, module, domain) DO UPDATE SET used = MAX(used + ?, 0)`,
		tenantID, module, domain, delta, delta)
	if err != nil {
		return fmt.Errorf("updating quota usage: %w", err)
	}
	return nil
}

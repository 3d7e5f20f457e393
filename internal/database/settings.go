package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StorageSettingsRow is the persisted storage selection of one tenant.
// Props is a JSON object whose values are encrypted by the caller.
type StorageSettingsRow struct {
	TenantID int
	Module   string
	Props    string
}

// GetStorageSettings returns nil and no error when the tenant never
// configured storage.
func (q *Queries) GetStorageSettings(ctx context.Context, tenantID int) (*StorageSettingsRow, error) {
	row := StorageSettingsRow{TenantID: tenantID}
	err := q.db.QueryRowContext(ctx,
		`SELECT module, props FROM storage_settings WHERE tenant_id = ?`, tenantID).Scan(&row.Module, &row.Props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting storage settings: %w", err)
	}
	return &row, nil
}

// SaveStorageSettings replaces the tenant's settings.
func (q *Queries) SaveStorageSettings(ctx context.Context, row StorageSettingsRow) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO storage_settings (tenant_id, module, props) VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET module = excluded.module, props = excluded.props`,
		row.TenantID, row.Module, row.Props)
	if err != nil {
		return fmt.Errorf("saving storage settings: %w", err)
	}
	return nil
}

// DeleteStorageSettings resets the tenant to the default storage.
func (q *Queries) DeleteStorageSettings(ctx context.Context, tenantID int) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM storage_settings WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("deleting storage settings: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jujuerrors "github.com/juju/errors"

	"docstore/internal/files"
)

// ProviderAccount is a persisted link to a third-party store. Password and
// Token hold encrypted values.
type ProviderAccount struct {
	ID            int
	TenantID      int
	Provider      string
	CustomerTitle string
	UserID        uuid.UUID
	FolderType    files.FolderType
	URL           string
	UserName      string
	Password      string
	Token         string
	CreateOn      time.Time
}

const accountColumns = `id, tenant_id, provider, customer_title, user_id, folder_type, url, user_name, password, token, create_on`

func scanAccount(s scanner) (*ProviderAccount, error) {
	var (
		a          ProviderAccount
		folderType int
	)
	err := s.Scan(&a.ID, &a.TenantID, &a.Provider, &a.CustomerTitle, &a.UserID, &folderType,
		&a.URL, &a.UserName, &a.Password, &a.Token, &a.CreateOn)
	if err != nil {
		return nil, err
	}
	a.FolderType = files.FolderType(folderType)
	return &a, nil
}

// InsertProviderAccount stores a new account and sets its ID.
func (q *Queries) InsertProviderAccount(ctx context.Context, a *ProviderAccount) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO thirdparty_account (tenant_id, provider, customer_title, user_id, folder_type, url, user_name, password, token, create_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TenantID, a.Provider, a.CustomerTitle, a.UserID, int(a.FolderType), a.URL, a.UserName, a.Password, a.Token, a.CreateOn)
	if err != nil {
		return fmt.Errorf("inserting provider account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading provider account id: %w", err)
	}
	a.ID = int(id)
	return nil
}

// GetProviderAccount returns a not-found error when the link does not exist.
func (q *Queries) GetProviderAccount(ctx context.Context, tenantID, id int) (*ProviderAccount, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM thirdparty_account WHERE tenant_id = ? AND id = ?`, tenantID, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jujuerrors.NotFoundf("provider account %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting provider account: %w", err)
	}
	return a, nil
}

// ListProviderAccounts returns the tenant's links visible to user: the
// user's own plus every link mounted in the common folder.
func (q *Queries) ListProviderAccounts(ctx context.Context, tenantID int, user uuid.UUID) ([]*ProviderAccount, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM thirdparty_account
		 WHERE tenant_id = ? AND (user_id = ? OR folder_type = ?) ORDER BY id`,
		tenantID, user, int(files.FolderTypeCommon))
	if err != nil {
		return nil, fmt.Errorf("listing provider accounts: %w", err)
	}
	defer rows.Close()

	var result []*ProviderAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning provider account: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateProviderAccountTitle renames a link.
func (q *Queries) UpdateProviderAccountTitle(ctx context.Context, tenantID, id int, title string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE thirdparty_account SET customer_title = ? WHERE tenant_id = ? AND id = ?`, title, tenantID, id)
	if err != nil {
		return fmt.Errorf("updating provider account: %w", err)
	}
	if rowsAffected(res) == 0 {
		return jujuerrors.NotFoundf("provider account %d", id)
	}
	return nil
}

// RemoveProviderAccount deletes a link together with the share records, tag
// links and id mappings of every entry addressed through it. idPrefix is
// the link's root id, e.g. "box-12".
func (u *UnitOfWork) RemoveProviderAccount(ctx context.Context, tenantID, id int, idPrefix string) error {
	if err := u.PurgeMappedEntries(ctx, tenantID, idPrefix, idPrefix+"-"); err != nil {
		return err
	}

	res, err := u.db.ExecContext(ctx,
		`DELETE FROM thirdparty_account WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting provider account: %w", err)
	}
	if rowsAffected(res) == 0 {
		return jujuerrors.NotFoundf("provider account %d", id)
	}
	return nil
}

// PurgeMappedEntries deletes the share records, tag links and id mappings
// of the provider id and of every id starting with childPrefix.
func (u *UnitOfWork) PurgeMappedEntries(ctx context.Context, tenantID int, id, childPrefix string) error {
	mapped := `SELECT hash_id FROM thirdparty_id_mapping
	            WHERE tenant_id = ? AND (id = ? OR id LIKE ? ESCAPE '\')`
	like := escapeLike(childPrefix) + "%"

	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM security WHERE tenant_id = ? AND entry_id IN (`+mapped+`)`,
		tenantID, tenantID, id, like); err != nil {
		return fmt.Errorf("deleting provider share records: %w", err)
	}
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM tag_links WHERE tenant_id = ? AND entry_id IN (`+mapped+`)`,
		tenantID, tenantID, id, like); err != nil {
		return fmt.Errorf("deleting provider tags: %w", err)
	}
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM thirdparty_id_mapping WHERE tenant_id = ? AND (id = ? OR id LIKE ? ESCAPE '\')`,
		tenantID, id, like); err != nil {
		return fmt.Errorf("deleting id mappings: %w", err)
	}
	return nil
}

package thirdparty

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/encryption"
	"docstore/internal/files"
)

// ProviderInfo is a persisted link with its credentials decrypted.
// Password and Token are empty when the stored value could not be
// decrypted.
type ProviderInfo struct {
	ID             int
	TenantID       int
	Provider       Provider
	CustomerTitle  string
	Owner          uuid.UUID
	RootFolderType files.FolderType
	URL            string
	UserName       string
	Password       string
	Token          string
	CreateOn       time.Time
}

// RootID is the composite id of the link's root folder, e.g. "box-12".
func (p *ProviderInfo) RootID() string {
	return p.Provider.Prefix + "-" + strconv.Itoa(p.ID)
}

// NewLink describes a store being connected.
type NewLink struct {
	Provider       string
	CustomerTitle  string
	RootFolderType files.FolderType
	URL            string
	UserName       string
	Password       string
	Token          string
}

// Accounts manages provider links for the actors of a tenant.
type Accounts struct {
	store   *database.Store
	creds   *encryption.Credentials
	clock   files.Clock
	enabled map[string]bool
	logger  files.Logger
}

// NewAccounts creates the link manager. An empty enabled list allows every
// known provider.
func NewAccounts(store *database.Store, creds *encryption.Credentials, clock files.Clock, enabled []string, logger files.Logger) *Accounts {
	var set map[string]bool
	if len(enabled) > 0 {
		set = make(map[string]bool, len(enabled))
		for _, key := range enabled {
			set[strings.ToLower(key)] = true
		}
	}
	return &Accounts{store: store, creds: creds, clock: clock, enabled: set, logger: logger}
}

// IsEnabled reports whether links to p may be used.
func (a *Accounts) IsEnabled(p Provider) bool {
	return a.enabled == nil || a.enabled[strings.ToLower(p.Key)]
}

// SaveProviderInfo stores a new link owned by actor and returns its id.
func (a *Accounts) SaveProviderInfo(ctx context.Context, actor files.Actor, link NewLink) (int, error) {
	p, ok := ProviderByKey(link.Provider)
	if !ok {
		return 0, errors.NotValidf("provider %q", link.Provider)
	}
	if !a.IsEnabled(p) {
		return 0, errors.NotSupportedf("provider %q", p.Key)
	}
	if strings.TrimSpace(link.CustomerTitle) == "" {
		return 0, errors.NotValidf("empty provider title")
	}
	if link.RootFolderType != files.FolderTypeUser && link.RootFolderType != files.FolderTypeCommon {
		return 0, errors.NotValidf("root folder type %d", link.RootFolderType)
	}

	password, err := a.creds.Encrypt(link.Password)
	if err != nil {
		return 0, errors.Annotate(err, "encrypting provider password")
	}
	token, err := a.creds.Encrypt(link.Token)
	if err != nil {
		return 0, errors.Annotate(err, "encrypting provider token")
	}

	acc := &database.ProviderAccount{
		TenantID:      actor.TenantID,
		Provider:      p.Key,
		CustomerTitle: link.CustomerTitle,
		UserID:        actor.UserID,
		FolderType:    link.RootFolderType,
		URL:           link.URL,
		UserName:      link.UserName,
		Password:      password,
		Token:         token,
		CreateOn:      a.clock.Now(),
	}
	if err := a.store.InsertProviderAccount(ctx, acc); err != nil {
		return 0, err
	}
	a.logger.Info("provider linked", "tenant", actor.TenantID, "provider", p.Key, "link", acc.ID)
	return acc.ID, nil
}

// GetProviderInfo loads a link actor may use: one the actor owns or one
// mounted in the common folder. Any other outcome, including a missing
// link, is a provider access error.
func (a *Accounts) GetProviderInfo(ctx context.Context, actor files.Actor, linkID int) (*ProviderInfo, error) {
	acc, err := a.store.GetProviderAccount(ctx, actor.TenantID, linkID)
	if errors.Is(err, errors.NotFound) {
		return nil, accessDenied(linkID)
	}
	if err != nil {
		return nil, err
	}
	info, ok := a.toProviderInfo(acc)
	if !ok {
		return nil, accessDenied(linkID)
	}
	if info.Owner != actor.UserID && info.RootFolderType != files.FolderTypeCommon {
		return nil, accessDenied(linkID)
	}
	return info, nil
}

// GetProvidersInfo lists the links visible to actor.
func (a *Accounts) GetProvidersInfo(ctx context.Context, actor files.Actor) ([]*ProviderInfo, error) {
	accs, err := a.store.ListProviderAccounts(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}
	result := make([]*ProviderInfo, 0, len(accs))
	for _, acc := range accs {
		if info, ok := a.toProviderInfo(acc); ok {
			result = append(result, info)
		}
	}
	return result, nil
}

// UpdateProviderInfo renames a link.
func (a *Accounts) UpdateProviderInfo(ctx context.Context, actor files.Actor, linkID int, title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.NotValidf("empty provider title")
	}
	if _, err := a.GetProviderInfo(ctx, actor, linkID); err != nil {
		return err
	}
	return a.store.UpdateProviderAccountTitle(ctx, actor.TenantID, linkID, title)
}

// RemoveProviderInfo deletes a link with every share record, tag and id
// mapping of the entries below it.
func (a *Accounts) RemoveProviderInfo(ctx context.Context, actor files.Actor, linkID int) error {
	info, err := a.GetProviderInfo(ctx, actor, linkID)
	if err != nil {
		return err
	}
	err = a.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		return uow.RemoveProviderAccount(ctx, actor.TenantID, linkID, info.RootID())
	})
	if err != nil {
		return err
	}
	a.logger.Info("provider unlinked", "tenant", actor.TenantID, "provider", info.Provider.Key, "link", linkID)
	return nil
}

func (a *Accounts) toProviderInfo(acc *database.ProviderAccount) (*ProviderInfo, bool) {
	p, ok := ProviderByKey(acc.Provider)
	if !ok || !a.IsEnabled(p) {
		return nil, false
	}
	info := &ProviderInfo{
		ID:             acc.ID,
		TenantID:       acc.TenantID,
		Provider:       p,
		CustomerTitle:  acc.CustomerTitle,
		Owner:          acc.UserID,
		RootFolderType: acc.FolderType,
		URL:            acc.URL,
		UserName:       acc.UserName,
		CreateOn:       acc.CreateOn,
	}
	var decrypted bool
	if info.Password, decrypted = a.creds.TryDecrypt(acc.Password); !decrypted {
		a.logger.Warn("cannot decrypt provider password", "link", acc.ID)
	}
	if info.Token, decrypted = a.creds.TryDecrypt(acc.Token); !decrypted {
		a.logger.Warn("cannot decrypt provider token", "link", acc.ID)
	}
	return info, true
}

func accessDenied(linkID int) error {
	return errors.WithType(errors.Forbiddenf("provider link %d", linkID), files.ErrProviderAccess)
}

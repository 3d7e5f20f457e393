package thirdparty

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/files"
)

// ProviderDao serves folder, file, tag and security operations on one
// link for one actor. It opens its session on first use; Close releases it.
type ProviderDao struct {
	actor    files.Actor
	info     *ProviderInfo
	selector *Selector
	store    *database.Store
	logger   files.Logger

	mu      sync.Mutex
	session Session
	closed  bool
}

var _ files.DaoSet = (*ProviderDao)(nil)

// NewProviderDao creates an unbound DAO. Init must be called before use.
func NewProviderDao(actor files.Actor) *ProviderDao {
	return &ProviderDao{actor: actor}
}

// Init binds the DAO to a link.
func (d *ProviderDao) Init(info *ProviderInfo, selector *Selector) {
	d.info = info
	d.selector = selector
	d.store = selector.accounts.store
	d.logger = selector.logger
}

// Info returns the bound link.
func (d *ProviderDao) Info() *ProviderInfo {
	return d.info
}

// Close releases the session. Further calls fail.
func (d *ProviderDao) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}

func (d *ProviderDao) FolderDao() files.FolderDao     { return &folderDao{d} }
func (d *ProviderDao) FileDao() files.FileDao         { return &fileDao{d} }
func (d *ProviderDao) TagDao() files.TagDao           { return &tagDao{d} }
func (d *ProviderDao) SecurityDao() files.SecurityDao { return &securityDao{d} }

func (d *ProviderDao) open(ctx context.Context) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.Errorf("%s link %d: dao closed", d.info.Provider.Key, d.info.ID)
	}
	if d.session == nil {
		s, err := d.selector.sessions.Open(ctx, d.info)
		if err != nil {
			return nil, err
		}
		d.session = s
	}
	return d.session, nil
}

// path converts id and checks that it lies within the bound link.
func (d *ProviderDao) path(id string) (string, error) {
	p, err := d.selector.ConvertID(id)
	if err != nil {
		return "", err
	}
	if d.selector.GetIDCode(id) != strconv.Itoa(d.info.ID) {
		return "", errors.NotValidf("id %q outside %s link %d", id, d.info.Provider.Key, d.info.ID)
	}
	return p, nil
}

func (d *ProviderDao) makeID(p string) string {
	return d.selector.MakeID(d.info.ID, p)
}

func (d *ProviderDao) mapper(q *database.Queries) *database.IDMapper {
	return q.IDMapper(Prefixes()...)
}

func (d *ProviderDao) toFolder(item *Item) *files.Folder {
	f := &files.Folder{
		ID:             d.makeID(item.Path),
		TenantID:       d.info.TenantID,
		Title:          item.Name,
		FolderType:     files.FolderTypeDefault,
		RootFolderID:   d.makeID(""),
		RootFolderType: d.info.RootFolderType,
		CreatedBy:      d.info.Owner,
		CreatedOn:      d.info.CreateOn,
		ModifiedBy:     d.info.Owner,
		ModifiedOn:     item.Modified,
		ProviderID:     d.info.ID,
		ProviderKey:    d.info.Provider.Key,
	}
	if item.Path == "" {
		f.Title = d.info.CustomerTitle
	} else {
		f.ParentID = d.makeID(parentPath(item.Path))
	}
	if f.ModifiedOn.IsZero() {
		f.ModifiedOn = d.info.CreateOn
	}
	return f
}

func (d *ProviderDao) toFile(item *Item) *files.File {
	f := &files.File{
		ID:             d.makeID(item.Path),
		FolderID:       d.makeID(parentPath(item.Path)),
		TenantID:       d.info.TenantID,
		Title:          item.Name,
		Version:        1,
		ContentLength:  item.Size,
		RootFolderID:   d.makeID(""),
		RootFolderType: d.info.RootFolderType,
		CreatedBy:      d.info.Owner,
		CreatedOn:      d.info.CreateOn,
		ModifiedBy:     d.info.Owner,
		ModifiedOn:     item.Modified,
		ProviderID:     d.info.ID,
		ProviderKey:    d.info.Provider.Key,
	}
	if f.Title == "" {
		f.Title = d.info.Provider.Key
	}
	if f.ModifiedOn.IsZero() {
		f.ModifiedOn = d.info.CreateOn
	}
	return f
}

// toErrorFolder stands in for a folder the store failed to describe.
func (d *ProviderDao) toErrorFolder(p string, err error) *files.Folder {
	d.logger.Warn("provider folder unavailable", "provider", d.info.Provider.Key, "link", d.info.ID, "path", p, "error", err)
	f := d.toFolder(&Item{Path: p, Name: baseName(p), IsFolder: true})
	f.Error = err.Error()
	return f
}

func (d *ProviderDao) toErrorFile(p string, err error) *files.File {
	d.logger.Warn("provider file unavailable", "provider", d.info.Provider.Key, "link", d.info.ID, "path", p, "error", err)
	f := d.toFile(&Item{Path: p, Name: baseName(p)})
	f.Error = err.Error()
	return f
}

func (d *ProviderDao) list(ctx context.Context, folderID string, folders bool) ([]*Item, error) {
	p, err := d.path(folderID)
	if err != nil {
		return nil, err
	}
	s, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.List(ctx, p)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("folder %q", folderID)
	}
	if err != nil {
		return nil, err
	}
	result := items[:0]
	for _, item := range items {
		if item.IsFolder == folders {
			result = append(result, item)
		}
	}
	return result, nil
}

// availableTitle picks a title not yet used directly in parent.
func (d *ProviderDao) availableTitle(ctx context.Context, s Session, parent, title string) (string, error) {
	items, err := s.List(ctx, parent)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(items))
	for _, item := range items {
		taken[item.Name] = true
	}
	return files.GetAvailableTitle(title, func(t string) (bool, error) {
		return taken[t], nil
	})
}

// move re-parents id under toFolderID, keeping its name unless it is taken,
// and carries the mapped rows over to the new id.
func (d *ProviderDao) move(ctx context.Context, id, toFolderID string) (string, error) {
	p, err := d.path(id)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", errors.NotValidf("moving the root of %s link %d", d.info.Provider.Key, d.info.ID)
	}
	to, err := d.path(toFolderID)
	if err != nil {
		return "", err
	}
	if parentPath(p) == to {
		return id, nil
	}
	return d.relocate(ctx, id, p, to, baseName(p))
}

func (d *ProviderDao) relocate(ctx context.Context, id, p, to, title string) (string, error) {
	s, err := d.open(ctx)
	if err != nil {
		return "", err
	}
	title, err = d.availableTitle(ctx, s, to, title)
	if err != nil {
		return "", err
	}
	item, err := s.Move(ctx, p, to, title)
	if err != nil {
		return "", err
	}
	newID := d.makeID(item.Path)
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		return uow.MoveMappedEntries(ctx, d.actor.TenantID, id, newID)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// remove deletes p remotely, then the rows mapped to id and below it.
func (d *ProviderDao) remove(ctx context.Context, id string) error {
	p, err := d.path(id)
	if err != nil {
		return err
	}
	if p == "" {
		return errors.NotValidf("deleting the root of %s link %d", d.info.Provider.Key, d.info.ID)
	}
	s, err := d.open(ctx)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, p); err != nil {
		return err
	}
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		return uow.PurgeMappedEntries(ctx, d.actor.TenantID, id, id+"|")
	})
}

// ancestors returns the paths from the link root down to p, p included.
func ancestors(p string) []string {
	chain := []string{""}
	if p == "" {
		return chain
	}
	parts := strings.Split(p, "/")
	for i := range parts {
		chain = append(chain, strings.Join(parts[:i+1], "/"))
	}
	return chain
}

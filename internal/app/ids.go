package app

import (
	"context"

	"github.com/juju/errors"

	"docstore/internal/files"
	"docstore/internal/thirdparty"
)

// ConvertedID is a composite id taken apart.
type ConvertedID struct {
	Provider string // empty for native ids
	LinkID   string
	Path     string
}

// ConvertID splits id into provider, link and provider-native path.
func (a *DocstoreApp) ConvertID(id string) (*ConvertedID, error) {
	if files.IsNativeID(id) {
		return &ConvertedID{Path: id}, nil
	}
	sel, ok := a.daos.Selector(id)
	if !ok {
		return nil, a.op.Fail(errors.NotValidf("entry id %q", id))
	}
	p, err := sel.ConvertID(id)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	return &ConvertedID{Provider: sel.Provider().Key, LinkID: sel.GetIDCode(id), Path: p}, nil
}

// MakeID builds the composite id of path p inside link linkID of provider.
func (a *DocstoreApp) MakeID(provider string, linkID int, p string) (string, error) {
	want, ok := thirdparty.ProviderByKey(provider)
	if !ok {
		return "", a.op.Fail(errors.NotValidf("provider %q", provider))
	}
	for _, sel := range a.daos.Selectors() {
		if sel.Provider() == want {
			return sel.MakeID(linkID, p), nil
		}
	}
	return "", a.op.Fail(errors.NotSupportedf("provider %q", provider))
}

// MapID returns the surrogate key stored for id in share and tag records,
// persisting the mapping for provider ids.
func (a *DocstoreApp) MapID(ctx context.Context, id string) (string, error) {
	mapped, err := a.store.IDMapper(thirdparty.Prefixes()...).MapID(ctx, a.actor.TenantID, id, true)
	return mapped, a.op.Fail(err)
}

// ResolveID returns the id a surrogate key was derived from, or "" when
// the key was never stored.
func (a *DocstoreApp) ResolveID(ctx context.Context, hash string) (string, error) {
	id, err := a.store.IDMapper(thirdparty.Prefixes()...).ResolveHash(ctx, a.actor.TenantID, hash)
	return id, a.op.Fail(err)
}

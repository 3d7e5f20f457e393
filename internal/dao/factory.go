package dao

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/files"
	"docstore/internal/thirdparty"
)

// Factory picks the DAO set for an entry id: native ids go to the local
// store, composite ids to the first selector whose pattern matches.
type Factory struct {
	store     *database.Store
	storage   ContentStorage
	selectors []*thirdparty.Selector
	clock     files.Clock
	logger    files.Logger
}

// NewFactory creates a Factory. selectors are tried in the given order.
func NewFactory(store *database.Store, storage ContentStorage, selectors []*thirdparty.Selector,
	clock files.Clock, logger files.Logger) *Factory {
	return &Factory{
		store:     store,
		storage:   storage,
		selectors: selectors,
		clock:     clock,
		logger:    logger,
	}
}

// Selectors returns the selectors in priority order.
func (f *Factory) Selectors() []*thirdparty.Selector {
	return f.selectors
}

// Selector returns the selector owning id.
func (f *Factory) Selector(id string) (*thirdparty.Selector, bool) {
	for _, s := range f.selectors {
		if s.IsMatch(id) {
			return s, true
		}
	}
	return nil, false
}

// ForActor opens a scope for one logical request. The caller must Close it.
func (f *Factory) ForActor(actor files.Actor) *Scope {
	return &Scope{
		factory:   f,
		actor:     actor,
		native:    NewNativeDao(actor, f.store, f.storage, f.clock, f.logger.With("tenant", actor.TenantID)),
		providers: make(map[string]*thirdparty.ProviderDao),
	}
}

// Scope hands out DAO sets for one actor. Provider DAOs are opened once
// per link and released together by Close.
type Scope struct {
	factory *Factory
	actor   files.Actor
	native  *NativeDao

	mu        sync.Mutex
	providers map[string]*thirdparty.ProviderDao
	closed    bool
}

func (s *Scope) Actor() files.Actor {
	return s.actor
}

// Native returns the DAO set of the local store.
func (s *Scope) Native() *NativeDao {
	return s.native
}

// DaoSet returns the DAO set serving id. An id no selector recognizes is
// a malformed id; a recognized id on a missing or foreign link is a
// provider access error.
func (s *Scope) DaoSet(ctx context.Context, id string) (files.DaoSet, error) {
	if files.IsNativeID(id) {
		return s.native, nil
	}
	sel, ok := s.factory.Selector(id)
	if !ok {
		return nil, errors.NotValidf("entry id %q", id)
	}
	key := sel.Provider().Prefix + "-" + sel.GetIDCode(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("dao scope is closed")
	}
	if d, ok := s.providers[key]; ok {
		return d, nil
	}
	d, err := sel.GetDaoSet(ctx, s.actor, id)
	if err != nil {
		return nil, err
	}
	s.providers[key] = d
	return d, nil
}

func (s *Scope) FolderDao(ctx context.Context, id string) (files.FolderDao, error) {
	set, err := s.DaoSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return set.FolderDao(), nil
}

func (s *Scope) FileDao(ctx context.Context, id string) (files.FileDao, error) {
	set, err := s.DaoSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return set.FileDao(), nil
}

func (s *Scope) TagDao(ctx context.Context, id string) (files.TagDao, error) {
	set, err := s.DaoSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return set.TagDao(), nil
}

func (s *Scope) SecurityDao(ctx context.Context, id string) (files.SecurityDao, error) {
	set, err := s.DaoSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return set.SecurityDao(), nil
}

// Close releases every provider DAO the scope opened. It returns the first
// failure after trying all of them.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	for key, d := range s.providers {
		if err := d.Close(); err != nil {
			s.factory.logger.Warn("closing provider dao", "link", key, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	s.providers = nil
	return first
}

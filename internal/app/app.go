package app

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"docstore/internal/config"
	"docstore/internal/dao"
	"docstore/internal/database"
	"docstore/internal/encryption"
	"docstore/internal/files"
	"docstore/internal/notify"
	"docstore/internal/storage"
	"docstore/internal/thirdparty"
)

// DocstoreApp is the application layer between the CLI and the DAOs.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string ids, and releases everything on Close.
type DocstoreApp struct {
	cfg      *config.Config
	actor    files.Actor
	store    *database.Store
	notifier notify.Notifier
	listener *storage.Listener
	storage  *storage.Factory
	accounts *thirdparty.Accounts
	sessions *thirdparty.Registry
	daos     *dao.Factory
	clock    files.Clock
	logger   files.Logger
	op       *Operation
	logFile  *os.File
}

// Option adjusts how NewDocstoreApp wires the application.
type Option func(*options)

type options struct {
	clock   files.Clock
	openers map[thirdparty.Provider]thirdparty.Opener
}

// WithClock replaces the wall clock.
func WithClock(c files.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithOpener registers a session opener for provider p.
func WithOpener(p thirdparty.Provider, open thirdparty.Opener) Option {
	return func(o *options) { o.openers[p] = open }
}

// NewDocstoreApp creates a fully wired DocstoreApp from the given config.
// operation identifies the CLI command being run (e.g. "CreateFolder").
// passphrase unlocks the credential key; when empty, stored credentials
// stay sealed. The caller must call Close when done.
func NewDocstoreApp(ctx context.Context, cfg *config.Config, operation, passphrase string, opts ...Option) (*DocstoreApp, error) {
	o := &options{clock: files.RealClock{}, openers: make(map[thirdparty.Provider]thirdparty.Opener)}
	for _, opt := range opts {
		opt(o)
	}

	actor := files.Actor{TenantID: cfg.TenantID}
	if cfg.UserID != "" {
		id, err := uuid.Parse(cfg.UserID)
		if err != nil {
			return nil, fmt.Errorf("parsing user_id: %w", err)
		}
		actor.UserID = id
	}

	creds, err := encryption.OpenCredentials(cfg.Encryption, passphrase)
	if err != nil {
		return nil, fmt.Errorf("opening credentials: %w", err)
	}

	op := NewOperation(operation, o.clock.Now())
	sl, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl.With("op", op.Name)}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	notifier, err := notify.NewNotifierFromConfig(ctx, cfg.Notify, logger)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating notifier: %w", err)
	}

	settings := storage.NewSettingsManager(store, creds, cfg.Storage, notifier, logger)
	sf := storage.NewFactory(cfg.Storage, cfg.Standalone, settings, store, logger)
	listener := storage.NewListener(sf, notifier, logger)
	if err := listener.Start(); err != nil {
		notifier.Close()
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("subscribing to cache notifications: %w", err)
	}

	accounts := thirdparty.NewAccounts(store, creds, o.clock, cfg.Thirdparty.Enable, logger)
	sessions := thirdparty.NewRegistry()
	for p, open := range o.openers {
		sessions.Register(p, open)
	}
	selectors := thirdparty.EnabledSelectors(accounts, sessions, logger)

	logger.Debug("started operation", "tenant", actor.TenantID, "user", actor.UserID,
		"providers", len(selectors), "credentials", creds.CanDecrypt())

	return &DocstoreApp{
		cfg:      cfg,
		actor:    actor,
		store:    store,
		notifier: notifier,
		listener: listener,
		storage:  sf,
		accounts: accounts,
		sessions: sessions,
		daos:     dao.NewFactory(store, sf, selectors, o.clock, logger),
		clock:    o.clock,
		logger:   logger,
		op:       op,
		logFile:  logFile,
	}, nil
}

// Actor returns the tenant and user every operation runs as.
func (a *DocstoreApp) Actor() files.Actor {
	return a.actor
}

// withScope runs fn with a DAO scope for the configured actor and records
// a failure on the operation.
// The scope is closed even when fn panics.
func (a *DocstoreApp) withScope(fn func(s *dao.Scope) error) (err error) {
	scope := a.daos.ForActor(a.actor)
	defer func() {
		if cerr := scope.Close(); err == nil {
			err = cerr
		}
		err = a.op.Fail(err)
	}()
	return fn(scope)
}

// Close stops the cache listener and closes the notifier, the database
// and the log file. It returns the first failure.
func (a *DocstoreApp) Close() error {
	var firstErr error

	a.listener.Stop()
	if err := a.notifier.Close(); err != nil {
		firstErr = fmt.Errorf("closing notifier: %w", err)
	}

	a.logger.Info("finished operation", "status", a.op.Status, "elapsed", a.op.Elapsed(a.clock.Now()))

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

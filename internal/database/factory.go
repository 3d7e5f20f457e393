package database

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"docstore/internal/config"
)

// DBFileName is the sqlite file created inside data_dir.
const DBFileName = "docstore.db"

// NewStoreFromConfig opens the store named by cfg. A sqlite store keeps
// its schema as found; "memory" starts empty and is migrated on open.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, errors.NotValidf("sqlite database without data_dir")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, errors.Annotate(err, "creating data_dir")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, DBFileName))
	case "memory":
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.NotSupportedf("database type %q", cfg.Type)
	}
}

package testutil

import (
	"testing"

	"docstore/internal/config"
	"docstore/internal/database"
	"docstore/internal/encryption"
)

// NewTestStore returns a migrated in-memory store closed at test cleanup.
func NewTestStore(t testing.TB) *database.Store {
	t.Helper()
	s, err := database.NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewTestCredentials returns unlocked credentials sealing with the test
// encryptor, so stored passwords and properties never hold plaintext.
func NewTestCredentials() *encryption.Credentials {
	enc := encryption.NewTestEncryptor()
	dc, err := enc.Unlock("")
	if err != nil {
		panic(err)
	}
	return encryption.NewCredentials(enc, dc)
}

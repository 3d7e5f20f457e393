package encryption

import (
	"testing"
)

func TestCredentials(t *testing.T) {
	t.Parallel()

	enc := NewTestEncryptor()
	dc, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	c := NewCredentials(enc, dc)

	t.Run("round trip", func(t *testing.T) {
		sealed, err := c.Encrypt("s3cret")
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if sealed == "s3cret" {
			t.Error("Encrypt() returned the plaintext")
		}
		got, ok := c.TryDecrypt(sealed)
		if !ok || got != "s3cret" {
			t.Errorf("TryDecrypt() = (%q, %v), want (%q, true)", got, ok, "s3cret")
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		sealed, err := c.Encrypt("")
		if err != nil || sealed != "" {
			t.Errorf("Encrypt(\"\") = (%q, %v), want (\"\", nil)", sealed, err)
		}
		if got, ok := c.TryDecrypt(""); !ok || got != "" {
			t.Errorf("TryDecrypt(\"\") = (%q, %v), want (\"\", true)", got, ok)
		}
	})

	t.Run("garbage fails", func(t *testing.T) {
		if got, ok := c.TryDecrypt("plain"); ok || got != "" {
			t.Errorf("TryDecrypt(plain) = (%q, %v), want (\"\", false)", got, ok)
		}
	})

	t.Run("locked", func(t *testing.T) {
		locked := NewCredentials(enc, nil)
		if locked.CanDecrypt() {
			t.Error("CanDecrypt() = true without context")
		}
		sealed, err := locked.Encrypt("x")
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if _, ok := locked.TryDecrypt(sealed); ok {
			t.Error("TryDecrypt() succeeded without a decryption context")
		}
	})
}

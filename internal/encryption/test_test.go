package encryption

import (
	"bytes"
	"strings"
	"testing"

	"github.com/juju/errors"
)

func TestTestEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"hello world", "", "pässwörd\n\x00", strings.Repeat("abcdef", 1000)} {
		e := NewTestEncryptor()
		var sealed bytes.Buffer
		if err := e.Encrypt(strings.NewReader(input), &sealed); err != nil {
			t.Fatalf("Encrypt(%q) error = %v", input, err)
		}
		if !strings.HasPrefix(sealed.String(), testPrefix) {
			t.Errorf("Encrypt(%q) = %q, missing marker", input, sealed.String())
		}
		if input != "" && strings.Contains(sealed.String(), input) {
			t.Errorf("Encrypt(%q) leaks the plaintext", input)
		}

		dc, err := e.Unlock("anything")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		var plain bytes.Buffer
		if err := dc.Decrypt(&sealed, &plain); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if plain.String() != input {
			t.Errorf("round trip = %q, want %q", plain.String(), input)
		}
	}
}

func TestTestEncryptor_Passphrase(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	if err := e.Setup("first"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := e.Setup("again"); !errors.Is(err, errors.AlreadyExists) {
		t.Errorf("second Setup() error = %v, want AlreadyExists", err)
	}
	if _, err := e.Unlock("wrong"); !errors.Is(err, errors.Unauthorized) {
		t.Errorf("Unlock(wrong) error = %v, want Unauthorized", err)
	}
	if err := e.ChangePassphrase("wrong", "second"); err == nil {
		t.Error("ChangePassphrase with the wrong old passphrase succeeded")
	}
	if err := e.ChangePassphrase("first", "second"); err != nil {
		t.Fatalf("ChangePassphrase() error = %v", err)
	}
	if _, err := e.Unlock("first"); err == nil {
		t.Error("old passphrase still unlocks")
	}
	if _, err := e.Unlock("second"); err != nil {
		t.Errorf("Unlock(second) error = %v", err)
	}
}

func TestTestDecryptionContext_Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"NOT_VALID_data", "DS", "", testPrefix + "!!not base64!!"} {
		var out bytes.Buffer
		if err := (&TestDecryptionContext{}).Decrypt(strings.NewReader(input), &out); err == nil {
			t.Errorf("Decrypt(%q) error = nil", input)
		}
	}
}

package encryption

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Encryptor protects provider credentials and storage properties at rest.
// Encryption needs only the public key. Decryption needs a DecryptionContext
// obtained by unlocking the private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and stores the private key encrypted with
	// passphrase. It is run once by `docstore keys init`.
	Setup(passphrase string) error

	// Encrypt writes a text-safe ciphertext of r to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a context able to decrypt, or an error for a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// ChangePassphrase reseals the private key. Ciphertexts stay valid.
	ChangePassphrase(oldPassphrase, newPassphrase string) error

	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Credentials encrypts and decrypts short secrets such as passwords, tokens
// and storage property values. A Credentials without a decryption context
// can still encrypt.
type Credentials struct {
	enc Encryptor
	dc  DecryptionContext
}

func NewCredentials(enc Encryptor, dc DecryptionContext) *Credentials {
	return &Credentials{enc: enc, dc: dc}
}

// CanDecrypt reports whether the private key was unlocked.
func (c *Credentials) CanDecrypt() bool {
	return c.dc != nil
}

// Encrypt returns the ciphertext of plain. The empty string stays empty.
func (c *Credentials) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.enc.Encrypt(strings.NewReader(plain), &buf); err != nil {
		return "", fmt.Errorf("encrypting credential: %w", err)
	}
	return buf.String(), nil
}

// TryDecrypt returns the plaintext of s and true, or "" and false when s
// cannot be decrypted. Callers treat false as "no usable credential".
func (c *Credentials) TryDecrypt(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	if c.dc == nil {
		return "", false
	}
	var buf bytes.Buffer
	if err := c.dc.Decrypt(strings.NewReader(s), &buf); err != nil {
		return "", false
	}
	return buf.String(), true
}

package encryption

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/juju/errors"
)

// testPrefix marks values produced by TestEncryptor.
const testPrefix = "DSENC:"

// TestEncryptor is a reversible encryptor for tests. Ciphertexts are the
// marker followed by base64 of the plaintext. Once Setup has run, Unlock
// only accepts that passphrase; before it any passphrase unlocks.
type TestEncryptor struct {
	passphrase *string
}

var _ Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if e.passphrase != nil {
		return errors.AlreadyExistsf("test key")
	}
	e.passphrase = &passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.WriteString(w, testPrefix); err != nil {
		return fmt.Errorf("writing test prefix: %w", err)
	}
	bw := base64.NewEncoder(base64.StdEncoding, w)
	if _, err := io.Copy(bw, r); err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}
	return bw.Close()
}

func (e *TestEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	if e.passphrase != nil && *e.passphrase != passphrase {
		return nil, errors.Unauthorizedf("wrong test passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) ChangePassphrase(oldPassphrase, newPassphrase string) error {
	if _, err := e.Unlock(oldPassphrase); err != nil {
		return err
	}
	e.passphrase = &newPassphrase
	return nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}
	body, ok := bytes.CutPrefix(data, []byte(testPrefix))
	if !ok {
		return errors.NotValidf("test ciphertext without prefix")
	}
	plain, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return fmt.Errorf("decoding test ciphertext: %w", err)
	}
	_, err = w.Write(plain)
	return err
}

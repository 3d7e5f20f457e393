package encryption

import (
	"github.com/juju/errors"

	"docstore/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, errors.NotValidf("age encryption without key paths")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, errors.NotSupportedf("encryption type %q", cfg.Type)
	}
}

// OpenCredentials builds the configured encryptor and unlocks it with
// passphrase. An empty passphrase yields credentials that can seal new
// secrets but read none of the stored ones.
func OpenCredentials(cfg config.EncryptionConfig, passphrase string) (*Credentials, error) {
	enc, err := NewEncryptorFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return NewCredentials(enc, nil), nil
	}
	if !enc.IsConfigured() {
		return nil, errors.NotFoundf("credential key pair")
	}
	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return nil, errors.Annotate(err, "unlocking credential key")
	}
	return NewCredentials(enc, dc), nil
}

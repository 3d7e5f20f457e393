package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by LoadDefaults.
const (
	ConfigPathEnv     = "DOCSTORE_CONFIG_PATH"
	HomeEnv           = "DOCSTORE_HOME"
	PassphraseEnv     = "DOCSTORE_KEY_PASSPHRASE"
	PassphraseFileEnv = "DOCSTORE_KEY_PASSPHRASE_FILE"
)

// Defaults are the locations and secrets a command starts from before the
// config file is read.
type Defaults struct {
	ConfigPath string // default ~/.config/docstore.toml
	BaseDir    string // default ~/.local/share/docstore
	// Passphrase unlocks stored credentials. Empty leaves them sealed.
	Passphrase string
}

// LoadDefaults resolves Defaults from the environment and the home
// directory. PassphraseEnv wins over PassphraseFileEnv; the file content
// is used without its trailing newline.
func LoadDefaults() (*Defaults, error) {
	d := &Defaults{
		ConfigPath: os.Getenv(ConfigPathEnv),
		BaseDir:    os.Getenv(HomeEnv),
		Passphrase: os.Getenv(PassphraseEnv),
	}

	if d.ConfigPath == "" || d.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if d.ConfigPath == "" {
			d.ConfigPath = filepath.Join(home, ".config", "docstore.toml")
		}
		if d.BaseDir == "" {
			d.BaseDir = filepath.Join(home, ".local", "share", "docstore")
		}
	}

	if d.Passphrase == "" {
		if path := os.Getenv(PassphraseFileEnv); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading passphrase file: %w", err)
			}
			d.Passphrase = strings.TrimRight(string(data), "\r\n")
		}
	}
	return d, nil
}


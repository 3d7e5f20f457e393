package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		t.Setenv(ConfigPathEnv, "/custom/config.toml")
		t.Setenv(HomeEnv, "/custom/docstore")
		t.Setenv(PassphraseEnv, "hunter2")
		t.Setenv(PassphraseFileEnv, "/does/not/exist")

		d, err := LoadDefaults()
		require.NoError(t, err)
		assert.Equal(t, "/custom/config.toml", d.ConfigPath)
		assert.Equal(t, "/custom/docstore", d.BaseDir)
		assert.Equal(t, "hunter2", d.Passphrase)
	})

	t.Run("home directory", func(t *testing.T) {
		t.Setenv(ConfigPathEnv, "")
		t.Setenv(HomeEnv, "")
		t.Setenv(PassphraseEnv, "")
		t.Setenv(PassphraseFileEnv, "")

		d, err := LoadDefaults()
		require.NoError(t, err)
		home, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(home, ".config", "docstore.toml"), d.ConfigPath)
		assert.Equal(t, filepath.Join(home, ".local", "share", "docstore"), d.BaseDir)
		assert.Empty(t, d.Passphrase)
	})

	t.Run("passphrase file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pass")
		require.NoError(t, os.WriteFile(path, []byte("from file\n"), 0600))
		t.Setenv(PassphraseEnv, "")
		t.Setenv(PassphraseFileEnv, path)

		d, err := LoadDefaults()
		require.NoError(t, err)
		assert.Equal(t, "from file", d.Passphrase)
	})

	t.Run("missing passphrase file", func(t *testing.T) {
		t.Setenv(PassphraseEnv, "")
		t.Setenv(PassphraseFileEnv, filepath.Join(t.TempDir(), "absent"))

		_, err := LoadDefaults()
		assert.Error(t, err)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("IMAGEGEN_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "rest", cfg.Gemini.Transport)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.PrimaryModel)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.FallbackModel)
	assert.Equal(t, 0, cfg.HTTPClient.MaxRetries)
	assert.Equal(t, "slide-deck", cfg.PPT.FilePrefix)
	assert.Empty(t, cfg.Gemini.APIKey)
}

func TestLoadFileThenEnv(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
gemini:
  primary_model: "model-a"
  fallback_model: "model-b"
storage:
  type: "s3"
  bucket: "decks"
`), 0o644))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("GEMINI_API_KEY", "key-123")
	t.Setenv("IMAGEGEN_API_KEY", "")
	t.Setenv("GEMINI_FALLBACK_MODEL", "model-c")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "model-a", cfg.Gemini.PrimaryModel)
	assert.Equal(t, "model-c", cfg.Gemini.FallbackModel)
	assert.Equal(t, "key-123", cfg.Gemini.APIKey)
	assert.Equal(t, "key-123", cfg.ImageGen.APIKey)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "decks", cfg.Storage.Bucket)
	// untouched defaults survive a partial file
	assert.Equal(t, "gemini-2.5-flash-image", cfg.ImageGen.Model)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
